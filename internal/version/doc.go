// Package version exposes build metadata shared by every binary.
//
// Version, Commit and BuildTime are injected with -ldflags; Full adds the Go
// runtime and platform. AttachCobraVersionCommand wires both a `version`
// subcommand and the --version flag.
package version
