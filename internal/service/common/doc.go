// Package common holds helpers shared by several services.
//
// It loads and overrides settings, applies the log level, and builds the
// receiver and dispatcher from configuration so the daemon and the console
// wire the core the same way.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
