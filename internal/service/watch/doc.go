// Package watch is the remote client of the gRPC alert feed: it streams
// alerts from a running daemon and prints the receiver status.
package watch
