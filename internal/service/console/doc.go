// Package console runs the interactive terminal receiver.
//
// The receiver stays idle until the user triggers the start action. Logs go
// to a file because the screen belongs to the UI.
package console
