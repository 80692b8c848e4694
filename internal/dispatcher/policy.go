package dispatcher

import (
	"errors"
	"fmt"
	"strings"
)

// Policy decides what happens when a subscription queue is full.
type Policy int

const (
	// DropOldest discards the oldest queued alert to make room.
	DropOldest Policy = iota
	// DropNewest discards the incoming alert.
	DropNewest
	// Unbounded never drops; the queue grows without limit.
	Unbounded
)

// DefaultQueueCapacity is the per-subscription queue bound.
const DefaultQueueCapacity = 1024

// ErrUnknownPolicy is returned by ParsePolicy for unsupported names.
var ErrUnknownPolicy = errors.New("unknown drop policy")

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case DropOldest:
		return "drop-oldest"
	case DropNewest:
		return "drop-newest"
	case Unbounded:
		return "unbounded"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a configuration value into a Policy.
// An empty value selects DropOldest.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop-oldest":
		return DropOldest, nil
	case "drop-newest":
		return DropNewest, nil
	case "unbounded":
		return Unbounded, nil
	default:
		return DropOldest, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}
