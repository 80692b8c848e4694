// Package daemon runs the headless alert receiver.
//
// Run binds the UDP receiver at startup, echoes every alert to the log and
// fans it out to the optional sinks: desktop notifications, MQTT forwarding
// and the gRPC feed. It returns when the context is cancelled or the
// receiver stops on its own.
package daemon
