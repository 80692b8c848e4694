// Package payload turns untrusted datagram bytes into display text.
//
// Decoding never fails: invalid sequences are replaced with U+FFFD, so a
// malformed or hostile payload still yields an alert.
package payload
