// Package feed implements the gRPC alert feed.
//
// The service alertreceiver.v1.AlertFeed is declared by hand on top of
// protobuf well-known types: GetStatus returns the receiver status and
// Subscribe streams every alert delivered after the call, in order. Client
// wraps the connection for the watch command.
package feed
