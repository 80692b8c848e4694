package alert

import "time"

// State is the lifecycle state of a receiver.
type State int

const (
	// StateIdle means the receiver has never listened.
	StateIdle State = iota
	// StateListening means the socket is bound and the receive loop runs.
	StateListening
	// StateStopped means the loop exited, see Status.Reason.
	StateStopped
)

// ReasonStopRequested is the stop reason recorded for an explicit Stop call.
const ReasonStopRequested = "stopped by request"

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of a receiver.
type Status struct {
	// State is the current lifecycle state.
	State State
	// Reason explains why the receiver stopped; empty unless State is StateStopped.
	Reason string
	// LocalAddr is the bound address while listening, or the last bound address.
	LocalAddr string
	// Received counts alerts produced by the current or last loop.
	Received uint64
	// TransientErrors counts receive errors the loop recovered from.
	TransientErrors uint64
	// StartedAt is when the current or last loop started.
	StartedAt time.Time
	// StoppedAt is when the last loop exited.
	StoppedAt time.Time
}
