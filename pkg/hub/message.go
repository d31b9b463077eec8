// Package hub fans analysis records out to proctor monitor websockets
// using a channel-based broadcast loop.
package hub

// Message is one encoded text frame queued for every monitor.
type Message struct {
	SessionID string
	Data      []byte
}
