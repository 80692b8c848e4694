package dispatcher

import "github.com/oshokin/alert-receiver/internal/domain/alert"

// initialRingSize caps the first allocation of a queue.
const initialRingSize = 64

// ring is a FIFO of alerts that grows on demand. Not safe for concurrent use.
type ring struct {
	buf  []alert.Alert
	head int
	size int
}

func (r *ring) len() int {
	return r.size
}

func (r *ring) push(a alert.Alert) {
	if r.size == len(r.buf) {
		r.grow()
	}

	r.buf[(r.head+r.size)%len(r.buf)] = a
	r.size++
}

func (r *ring) dropFront() {
	if r.size == 0 {
		return
	}

	r.buf[r.head] = alert.Alert{}
	r.head = (r.head + 1) % len(r.buf)
	r.size--
}

// popFront removes and returns the oldest alert.
func (r *ring) popFront() (alert.Alert, bool) {
	if r.size == 0 {
		return alert.Alert{}, false
	}

	a := r.buf[r.head]
	r.dropFront()

	return a, true
}

func (r *ring) grow() {
	newSize := len(r.buf) * 2
	if newSize == 0 {
		newSize = initialRingSize
	}

	buf := make([]alert.Alert, newSize)
	for i := range r.size {
		buf[i] = r.buf[(r.head+i)%len(r.buf)]
	}

	r.buf = buf
	r.head = 0
}
