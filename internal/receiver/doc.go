// Package receiver owns the UDP socket and its blocking receive loop.
//
// A Receiver binds once per Start, reads datagrams on its own goroutine,
// decodes each payload with a lossy decoder and hands the resulting alert to
// a Sink. Stop closes the socket, which unblocks a pending read, and waits
// for the loop to exit. Errors inside the loop never reach the sink: they are
// logged, counted, and reflected in Status.
package receiver
