// Package sender emits alert datagrams for drills and tests.
package sender
