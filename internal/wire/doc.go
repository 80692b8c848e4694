// Package wire converts domain values to and from protobuf well-known types.
//
// Alerts and receiver status travel as google.protobuf.Struct over the gRPC
// feed and as protojson documents to MQTT and the command line.
package wire
