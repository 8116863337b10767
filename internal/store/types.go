package store

import "time"

// Sender identifies where a persisted message originated.
type Sender string

const (
	// SenderClient marks a message received over a WebSocket connection.
	SenderClient Sender = "client"
	// SenderServer marks a message typed on the operator console.
	SenderServer Sender = "server"
)

// Valid reports whether the sender is one of the persisted sender kinds.
func (s Sender) Valid() bool {
	return s == SenderClient || s == SenderServer
}

// Message is one row of the append-only chat log.
type Message struct {
	Sender    Sender
	Text      string
	CreatedAt time.Time
}
