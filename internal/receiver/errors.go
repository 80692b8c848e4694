package receiver

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	// ErrAlreadyRunning is returned by Start while the receiver is listening.
	ErrAlreadyRunning = errors.New("receiver is already running")
	// ErrNilSink is returned by Start when no sink is provided.
	ErrNilSink = errors.New("sink must be provided")
	// errInvalidPort is wrapped into a BindError for out-of-range ports.
	errInvalidPort = errors.New("port must be between 0 and 65535")
	// errSocketClosed is the fatal reason for a socket closed without Stop.
	errSocketClosed = errors.New("socket closed unexpectedly")
)

// Cause classifies a bind failure so callers can react to it.
type Cause int

const (
	// CauseUnknown covers OS errors without a specific remedy.
	CauseUnknown Cause = iota
	// CauseInvalidAddress means the address or port cannot be used at all.
	CauseInvalidAddress
	// CausePortUnavailable means another socket holds the port.
	CausePortUnavailable
	// CausePermissionDenied means the process may not bind the port.
	CausePermissionDenied
	// CauseAlreadyRunning means another receiver process holds the port.
	CauseAlreadyRunning
)

// String returns a short cause name.
func (c Cause) String() string {
	switch c {
	case CauseInvalidAddress:
		return "invalid address"
	case CausePortUnavailable:
		return "port unavailable"
	case CausePermissionDenied:
		return "permission denied"
	case CauseAlreadyRunning:
		return "already running"
	default:
		return "unknown"
	}
}

// hint tells a human what to do about the cause.
func (c Cause) hint() string {
	switch c {
	case CauseInvalidAddress:
		return "check the listen address and port"
	case CausePortUnavailable:
		return "the port is used by another program, choose a different port"
	case CausePermissionDenied:
		return "use a port above 1023 or run with the required privileges"
	case CauseAlreadyRunning:
		return "another alert receiver is already listening on this port"
	default:
		return "the operating system refused the socket"
	}
}

// BindError reports a failed Start. The receive loop is never started.
type BindError struct {
	// Cause classifies the failure.
	Cause Cause
	// Address is the host:port the receiver tried to bind.
	Address string
	// Err is the underlying error.
	Err error
}

// Error returns a human-readable message including the remedy.
func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %s (%s): %v", e.Address, e.Cause, e.Cause.hint(), e.Err)
}

// Unwrap exposes the underlying error.
func (e *BindError) Unwrap() error {
	return e.Err
}

// Is matches ErrAlreadyRunning for CauseAlreadyRunning.
func (e *BindError) Is(target error) bool {
	return target == ErrAlreadyRunning && e.Cause == CauseAlreadyRunning
}

// classifyBindError maps a listen error onto a Cause.
// peerRunning is consulted only when the port is taken.
func classifyBindError(err error, peerRunning func() bool) Cause {
	var (
		dnsErr  *net.DNSError
		addrErr *net.AddrError
	)

	switch {
	case errors.Is(err, syscall.EADDRINUSE):
		if peerRunning != nil && peerRunning() {
			return CauseAlreadyRunning
		}

		return CausePortUnavailable
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return CausePermissionDenied
	case errors.Is(err, syscall.EADDRNOTAVAIL),
		errors.As(err, &dnsErr),
		errors.As(err, &addrErr):
		return CauseInvalidAddress
	default:
		return CauseUnknown
	}
}

// isTransient reports whether the loop may keep reading after err.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENOBUFS) ||
		errors.Is(err, syscall.ENOMEM) ||
		errors.Is(err, syscall.EMSGSIZE)
}
