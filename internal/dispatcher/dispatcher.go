package dispatcher

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/oshokin/alert-receiver/internal/domain/alert"
	"github.com/oshokin/alert-receiver/internal/logger"
)

// Handler consumes one alert. It runs on the subscription's drain goroutine.
type Handler func(alert.Alert)

// Dispatcher fans alerts out to subscriptions without blocking the producer.
type Dispatcher struct {
	// logCtx carries the logger used for drop and panic reports.
	logCtx context.Context //nolint:containedctx // Only used to resolve the logger.
	// capacity bounds every subscription queue unless policy is Unbounded.
	capacity int
	// policy applies when a bounded queue is full.
	policy Policy

	// mu guards subs and closed. Deliver holds it for reading.
	mu sync.RWMutex
	// subs lists active subscriptions in subscription order.
	subs []*Subscription
	// closed is set by Close; later deliveries are ignored.
	closed bool
	// drains tracks running drain goroutines.
	drains sync.WaitGroup

	// unclaimed counts alerts delivered while nobody was subscribed.
	unclaimed atomic.Uint64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithQueueCapacity bounds each subscription queue. Non-positive values keep the default.
func WithQueueCapacity(capacity int) Option {
	return func(d *Dispatcher) {
		if capacity > 0 {
			d.capacity = capacity
		}
	}
}

// WithPolicy selects what happens when a queue is full.
func WithPolicy(policy Policy) Option {
	return func(d *Dispatcher) {
		d.policy = policy
	}
}

// New creates a dispatcher. The context is used for logging only.
func New(ctx context.Context, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logCtx:   logger.WithName(ctx, "dispatcher"),
		capacity: DefaultQueueCapacity,
		policy:   DropOldest,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Deliver enqueues the alert for every subscription and returns immediately.
func (d *Dispatcher) Deliver(a alert.Alert) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}

	if len(d.subs) == 0 {
		d.unclaimed.Add(1)
		logger.DebugKV(d.logCtx, "Alert discarded, no subscribers", "id", a.ID.String())

		return
	}

	for _, s := range d.subs {
		s.enqueue(a)
	}
}

// Subscribe registers handler and starts its drain goroutine.
// After Close it returns a subscription that never fires.
func (d *Dispatcher) Subscribe(handler Handler) *Subscription {
	s := newSubscription(d, handler)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		s.markStopped()
		close(s.exited)

		return s
	}

	d.subs = append(d.subs, s)

	d.drains.Add(1)

	go func() {
		defer d.drains.Done()

		s.run()
	}()

	return s
}

// Close stops accepting alerts, lets every subscription drain what is
// already queued, and waits for the drain goroutines to exit.
// It must not be called from a handler.
func (d *Dispatcher) Close() {
	d.mu.Lock()

	if d.closed {
		d.mu.Unlock()
		d.drains.Wait()

		return
	}

	d.closed = true
	subs := d.subs
	d.subs = nil

	d.mu.Unlock()

	for _, s := range subs {
		s.finish()
	}

	d.drains.Wait()
}

// Subscribers returns the number of active subscriptions.
func (d *Dispatcher) Subscribers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.subs)
}

// Unclaimed returns the number of alerts delivered with no subscriber.
func (d *Dispatcher) Unclaimed() uint64 {
	return d.unclaimed.Load()
}

// remove detaches s from the delivery list.
func (d *Dispatcher) remove(s *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.subs = slices.DeleteFunc(d.subs, func(candidate *Subscription) bool {
		return candidate == s
	})
}
