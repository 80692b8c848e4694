// Package dispatcher moves alerts from the receive loop to consumers.
//
// Deliver never waits for a consumer: it appends the alert to every
// subscription's queue and returns. Each subscription owns one drain
// goroutine that invokes its handler serially, in delivery order, so
// consumers mutate their own state without locking. Queues are bounded with
// a drop policy unless configured as unbounded.
package dispatcher
