// Package desktop shows alerts as freedesktop notifications over the D-Bus
// session bus.
package desktop
