package receiver

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oshokin/alert-receiver/internal/domain/alert"
	"github.com/oshokin/alert-receiver/internal/logger"
	"github.com/oshokin/alert-receiver/internal/payload"
)

const (
	// DefaultPort is the UDP port used when none is configured.
	DefaultPort = 5000

	// DefaultBufferSize is the receive buffer; longer datagrams are truncated.
	DefaultBufferSize = 1024

	// maxPort is the highest valid UDP port.
	maxPort = 65535

	// initialBackoff and maxBackoff bound the pause after a transient error.
	initialBackoff = 5 * time.Millisecond
	maxBackoff     = 250 * time.Millisecond
)

// Sink accepts alerts from the receive loop. Deliver must return promptly
// and must not call Stop.
type Sink interface {
	Deliver(a alert.Alert)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(a alert.Alert)

// Deliver calls f(a).
func (f SinkFunc) Deliver(a alert.Alert) {
	f(a)
}

// Receiver binds a UDP socket and turns datagrams into alerts.
type Receiver struct {
	// logCtx carries the logger for loop events.
	logCtx context.Context //nolint:containedctx // Only used to resolve the logger.
	// bufferSize is the maximum payload size read per datagram.
	bufferSize int
	// decoder converts payload bytes to text.
	decoder *payload.Decoder
	// ids generates alert IDs in arrival order.
	ids *alert.IDGenerator
	// peerRunning reports whether another receiver process is alive.
	peerRunning func() bool

	// mu guards the lifecycle fields below.
	mu sync.Mutex
	// state is the current lifecycle state.
	state alert.State
	// reason is the stop reason of the last loop.
	reason string
	// conn is the bound socket while listening.
	conn net.PacketConn
	// localAddr is the last bound address.
	localAddr string
	// stopRequested marks that Stop closed the socket.
	stopRequested bool
	// startedAt and stoppedAt time the last loop.
	startedAt time.Time
	stoppedAt time.Time
	// done is closed when the current loop exits.
	done chan struct{}

	// received counts alerts produced by the current loop.
	received atomic.Uint64
	// transientErrors counts recovered receive errors of the current loop.
	transientErrors atomic.Uint64
}

// Option configures a Receiver.
type Option func(*Receiver)

// WithBufferSize sets the receive buffer size. Non-positive values keep the default.
func WithBufferSize(size int) Option {
	return func(r *Receiver) {
		if size > 0 {
			r.bufferSize = size
		}
	}
}

// WithDecoder sets the payload decoder.
func WithDecoder(decoder *payload.Decoder) Option {
	return func(r *Receiver) {
		if decoder != nil {
			r.decoder = decoder
		}
	}
}

// WithProcessName sets the executable name used to detect another running
// receiver when the port is taken. An empty name disables the check.
func WithProcessName(name string) Option {
	return func(r *Receiver) {
		r.peerRunning = func() bool {
			return peerProcessRunning(name)
		}
	}
}

// New creates an idle receiver. The context is used for logging only.
func New(ctx context.Context, opts ...Option) *Receiver {
	done := make(chan struct{})
	close(done)

	name := currentProcessName()

	r := &Receiver{
		logCtx:     logger.WithName(ctx, "receiver"),
		bufferSize: DefaultBufferSize,
		decoder:    payload.UTF8(),
		ids:        alert.NewIDGenerator(),
		peerRunning: func() bool {
			return peerProcessRunning(name)
		},
		state: alert.StateIdle,
		done:  done,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start binds address:port and starts the receive loop. An empty address
// listens on all interfaces; port 0 picks an ephemeral port.
// Cancelling ctx has the same effect as Stop.
func (r *Receiver) Start(ctx context.Context, address string, port int, sink Sink) error {
	if sink == nil {
		return ErrNilSink
	}

	listenAddress := net.JoinHostPort(address, strconv.Itoa(port))

	if port < 0 || port > maxPort {
		return &BindError{
			Cause:   CauseInvalidAddress,
			Address: listenAddress,
			Err:     errInvalidPort,
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == alert.StateListening {
		return ErrAlreadyRunning
	}

	lc := net.ListenConfig{}

	conn, err := lc.ListenPacket(ctx, "udp", listenAddress)
	if err != nil {
		bindErr := &BindError{
			Cause:   classifyBindError(err, r.peerRunning),
			Address: listenAddress,
			Err:     err,
		}

		logger.ErrorKV(r.logCtx, "Error binding socket", "address", listenAddress, "cause", bindErr.Cause.String(), "error", err)

		return bindErr
	}

	r.serve(ctx, conn, sink)

	return nil
}

// serve records conn as the listening socket and starts the loop on it.
// The caller holds r.mu.
func (r *Receiver) serve(ctx context.Context, conn net.PacketConn, sink Sink) {
	done := make(chan struct{})

	r.conn = conn
	r.localAddr = conn.LocalAddr().String()
	r.state = alert.StateListening
	r.reason = ""
	r.stopRequested = false
	r.startedAt = time.Now()
	r.stoppedAt = time.Time{}
	r.done = done
	r.received.Store(0)
	r.transientErrors.Store(0)

	logger.InfoKV(r.logCtx, "Listening for alerts", "address", r.localAddr, "buffer_size", r.bufferSize, "encoding", r.decoder.Name())

	go r.loop(conn, sink, done)

	go func() {
		select {
		case <-ctx.Done():
			r.Stop()
		case <-done:
		}
	}()
}

// Stop closes the socket and waits for the receive loop to exit.
// It is safe to call from any goroutine except the sink, and is a no-op
// unless the receiver is listening.
func (r *Receiver) Stop() {
	r.mu.Lock()

	if r.state != alert.StateListening {
		done := r.done
		r.mu.Unlock()

		<-done

		return
	}

	r.stopRequested = true
	conn := r.conn
	done := r.done

	r.mu.Unlock()

	if err := conn.Close(); err != nil {
		logger.DebugKV(r.logCtx, "Close socket", "error", err)
	}

	<-done
}

// Status returns a snapshot of the receiver state.
func (r *Receiver) Status() alert.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return alert.Status{
		State:           r.state,
		Reason:          r.reason,
		LocalAddr:       r.localAddr,
		Received:        r.received.Load(),
		TransientErrors: r.transientErrors.Load(),
		StartedAt:       r.startedAt,
		StoppedAt:       r.stoppedAt,
	}
}

// State returns the current lifecycle state.
func (r *Receiver) State() alert.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// LocalAddr returns the bound address, or the last bound address once stopped.
func (r *Receiver) LocalAddr() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.localAddr
}

// Done returns a channel closed when the current receive loop exits.
// Before the first Start it is already closed.
func (r *Receiver) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.done
}

// loop reads datagrams until Stop or a fatal error.
func (r *Receiver) loop(conn net.PacketConn, sink Sink, done chan struct{}) {
	defer close(done)

	var (
		buf     = make([]byte, r.bufferSize)
		backoff = initialBackoff
	)

	for {
		n, from, err := conn.ReadFrom(buf)
		if err == nil {
			r.deliver(sink, buf[:n], from)

			backoff = initialBackoff

			continue
		}

		if r.stopping() {
			r.finish(conn, alert.ReasonStopRequested)

			return
		}

		if errors.Is(err, net.ErrClosed) {
			r.fail(conn, errSocketClosed)

			return
		}

		if !isTransient(err) {
			r.fail(conn, err)

			return
		}

		// Oversized datagrams arrive truncated with an error on some platforms.
		if n > 0 && errors.Is(err, syscall.EMSGSIZE) {
			r.deliver(sink, buf[:n], from)
		}

		total := r.transientErrors.Add(1)
		logger.WarnKV(r.logCtx, "Error receiving message", "error", err, "transient_errors", total)

		time.Sleep(backoff)

		backoff = min(backoff*2, maxBackoff)
	}
}

// deliver decodes one payload and passes the alert to the sink.
func (r *Receiver) deliver(sink Sink, raw []byte, from net.Addr) {
	now := time.Now()

	var source string
	if from != nil {
		source = from.String()
	}

	a := alert.New(r.ids.Next(now), r.decoder.Decode(raw), source, len(raw), now)

	r.received.Add(1)

	if len(raw) == r.bufferSize {
		logger.DebugKV(r.logCtx, "Payload filled the buffer and may be truncated", "id", a.ID.String(), "size", len(raw))
	}

	logger.DebugKV(r.logCtx, "Datagram received", "id", a.ID.String(), "source", source, "size", len(raw))

	sink.Deliver(a)
}

func (r *Receiver) stopping() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stopRequested
}

// fail records a fatal loop error.
func (r *Receiver) fail(conn net.PacketConn, err error) {
	logger.ErrorKV(r.logCtx, "Receive loop stopped", "error", err)

	r.finish(conn, err.Error())
}

// finish transitions to Stopped and releases the socket.
func (r *Receiver) finish(conn net.PacketConn, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Close is idempotent from our side; the error only says it was already closed.
	_ = conn.Close()

	if r.state != alert.StateListening || r.conn != conn {
		return
	}

	r.state = alert.StateStopped
	r.reason = reason
	r.conn = nil
	r.stoppedAt = time.Now()

	logger.InfoKV(r.logCtx, "Receiver stopped", "address", r.localAddr, "reason", reason, "received", r.received.Load())
}
