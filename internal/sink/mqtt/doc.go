// Package mqtt forwards alerts to an MQTT broker.
//
// The Forwarder is a dispatcher subscriber: every alert is published as a
// JSON document on the configured topic. Publishing happens on the
// subscription's drain goroutine, so a slow broker only delays this sink.
package mqtt
