package core

import "errors"

// Frame is one encoded outbound protocol message.
type Frame []byte

// SessionID identifies a single connection, not a user.
type SessionID string

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// SignalConnection abstracts the messaging transport.
// Owned by the adapter; the room may Close() it to evict a peer.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
	// RemoteAddr is the observed network address, empty when unknown.
	RemoteAddr() string
}

// PublishResult reports delivery stats so the room can prune dead peers.
type PublishResult struct {
	SendTo  int
	Dropped []SessionID
}
