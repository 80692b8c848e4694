// Package alert contains the core domain types of the receiver.
//
// It defines Alert (one decoded datagram ready for display), the receiver
// lifecycle State with its Status snapshot, and an ID generator producing
// ULIDs that sort in arrival order.
package alert
