// Package tui is the interactive terminal front end of the receiver.
//
// It shows received alerts in a scrolling list with the newest at the bottom
// and offers a start action that binds the receiver. Alerts reach the
// bubbletea event loop through Program.Send, so the model is only ever
// touched by that loop.
package tui
