package alert

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DisplayPrefix is prepended to the decoded text to form the display string.
const DisplayPrefix = "Alert: "

// Alert is the decoded, display-formatted unit produced from one datagram.
// It is a value type: every field is immutable once New returns.
type Alert struct {
	// ID orders alerts produced by the same generator by arrival.
	ID ulid.ULID
	// Text is the decoded payload.
	Text string
	// Display is the string shown to the user, DisplayPrefix + Text.
	Display string
	// Source is the sender address as reported by the socket.
	Source string
	// Size is the number of payload bytes read, after truncation.
	Size int
	// ReceivedAt is when the datagram was read from the socket.
	ReceivedAt time.Time
}

// New builds an Alert from decoded text and receive metadata.
func New(id ulid.ULID, text, source string, size int, receivedAt time.Time) Alert {
	return Alert{
		ID:         id,
		Text:       text,
		Display:    FormatDisplay(text),
		Source:     source,
		Size:       size,
		ReceivedAt: receivedAt,
	}
}

// FormatDisplay renders the display string for the provided text.
func FormatDisplay(text string) string {
	return DisplayPrefix + text
}

// String returns the display string.
func (a Alert) String() string {
	return a.Display
}

// IDGenerator produces monotonic ULIDs, so IDs generated within the same
// millisecond still compare in generation order.
type IDGenerator struct {
	// entropy is the monotonic entropy source shared by all IDs.
	entropy *ulid.MonotonicEntropy
	// mu guards entropy, which is not safe for concurrent use.
	mu sync.Mutex
}

// NewIDGenerator creates a generator backed by crypto/rand.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Next returns the ID for an alert received at t.
func (g *IDGenerator) Next(t time.Time) ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t), g.entropy)
	if err != nil {
		// Entropy overflow within one millisecond; a fresh ID keeps the loop going.
		return ulid.Make()
	}

	return id
}
