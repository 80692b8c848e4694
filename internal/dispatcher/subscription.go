package dispatcher

import (
	"sync"
	"sync/atomic"

	"github.com/oshokin/alert-receiver/internal/domain/alert"
	"github.com/oshokin/alert-receiver/internal/logger"
)

// Subscription is one consumer registered with a Dispatcher.
type Subscription struct {
	// dispatcher owns the subscription.
	dispatcher *Dispatcher
	// handler is invoked for every alert, serially.
	handler Handler

	// mu guards queue and draining.
	mu sync.Mutex
	// queue holds alerts not yet handed to the handler. At most one more alert
	// is outside it, the one the handler is processing.
	queue ring
	// draining is set by Dispatcher.Close: exit once the queue is empty.
	draining bool

	// wake signals the drain goroutine that the queue changed.
	wake chan struct{}
	// stop is closed by Unsubscribe.
	stop chan struct{}
	// stopOnce guards closing stop.
	stopOnce sync.Once
	// exited is closed when the drain goroutine returns.
	exited chan struct{}

	// delivered counts handler invocations.
	delivered atomic.Uint64
	// dropped counts alerts discarded by the drop policy.
	dropped atomic.Uint64
}

func newSubscription(d *Dispatcher, handler Handler) *Subscription {
	return &Subscription{
		dispatcher: d,
		handler:    handler,
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		exited:     make(chan struct{}),
	}
}

// Unsubscribe stops the drain goroutine and discards queued alerts.
// It is idempotent and may be called from the handler itself.
func (s *Subscription) Unsubscribe() {
	s.markStopped()
	s.dispatcher.remove(s)
}

// Done is closed once the drain goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.exited
}

// Delivered returns how many alerts reached the handler.
func (s *Subscription) Delivered() uint64 {
	return s.delivered.Load()
}

// Dropped returns how many alerts the drop policy discarded.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Pending returns the number of queued alerts.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queue.len()
}

func (s *Subscription) markStopped() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// enqueue applies the drop policy and wakes the drain goroutine. It never blocks
// on the handler.
func (s *Subscription) enqueue(a alert.Alert) {
	var dropped bool

	s.mu.Lock()

	d := s.dispatcher
	if d.policy != Unbounded && s.queue.len() >= d.capacity {
		dropped = true

		if d.policy == DropNewest {
			s.mu.Unlock()
			s.reportDrop(a)

			return
		}

		s.queue.dropFront()
	}

	s.queue.push(a)
	s.mu.Unlock()

	if dropped {
		s.reportDrop(a)
	}

	s.signal()
}

func (s *Subscription) reportDrop(a alert.Alert) {
	total := s.dropped.Add(1)
	logger.WarnKV(s.dispatcher.logCtx, "Subscriber queue full, alert dropped",
		"policy", s.dispatcher.policy.String(),
		"capacity", s.dispatcher.capacity,
		"incoming_id", a.ID.String(),
		"dropped_total", total,
	)
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// finish asks the drain goroutine to exit after the queue is empty.
func (s *Subscription) finish() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	s.signal()
}

// next pops the oldest queued alert. The alert leaves the queue only when the
// handler is about to run, so the queue bound covers everything not yet handled.
func (s *Subscription) next() (a alert.Alert, ok, draining bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok = s.queue.popFront()

	return a, ok, s.draining
}

func (s *Subscription) run() {
	defer close(s.exited)

	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}

		for {
			if s.stopped() {
				return
			}

			a, ok, draining := s.next()
			if !ok {
				if draining {
					return
				}

				break
			}

			s.invoke(a)
		}
	}
}

func (s *Subscription) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Subscription) invoke(a alert.Alert) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(s.dispatcher.logCtx, "Alert handler panicked", "id", a.ID.String(), "panic", r)
		}
	}()

	s.handler(a)
	s.delivered.Add(1)
}
