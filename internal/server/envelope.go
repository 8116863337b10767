// Package server defines the wire envelope exchanged with connected clients
// and the codec that produces and parses its JSON frames.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lanchat/internal/store"
)

// Envelope kinds carried in the "type" field of every outbound frame.
const (
	// EnvelopeSystem is the connect-time greeting; never persisted.
	EnvelopeSystem = "system"
	// EnvelopeHistory carries one backlog message during join replay.
	EnvelopeHistory = "history"
	// EnvelopeMessage carries one live broadcast message.
	EnvelopeMessage = "message"
)

var (
	// ErrMalformedFrame reports an inbound frame that is not valid JSON.
	ErrMalformedFrame = errors.New("malformed inbound frame")
	// ErrMissingPayload reports an inbound frame without a "message" field.
	ErrMissingPayload = errors.New("inbound frame missing message payload")
)

// Envelope is one discrete wire unit sent to a connection, one JSON object
// per WebSocket frame.
type Envelope struct {
	Type      string       `json:"type"`
	Sender    store.Sender `json:"sender,omitempty"`
	Message   string       `json:"message"`
	Timestamp *time.Time   `json:"timestamp,omitempty"`
}

// EncodeSystem encodes the ephemeral greeting frame. System envelopes carry
// no sender and no timestamp.
func EncodeSystem(text string) ([]byte, error) {
	return json.Marshal(Envelope{Type: EnvelopeSystem, Message: text})
}

// EncodeHistory encodes one backlog message for join replay.
func EncodeHistory(msg store.Message) ([]byte, error) {
	return encodeStored(EnvelopeHistory, msg)
}

// EncodeMessage encodes one live message for broadcast.
func EncodeMessage(msg store.Message) ([]byte, error) {
	return encodeStored(EnvelopeMessage, msg)
}

func encodeStored(kind string, msg store.Message) ([]byte, error) {
	createdAt := msg.CreatedAt
	return json.Marshal(Envelope{
		Type:      kind,
		Sender:    msg.Sender,
		Message:   msg.Text,
		Timestamp: &createdAt,
	})
}

// DecodeInbound extracts the text payload from a client frame of the shape
// {"message": string}. A frame that is not JSON or lacks the message field
// is a decode error; the caller drops the frame and keeps the connection.
func DecodeInbound(frame []byte) (string, error) {
	var payload struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(frame, &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if payload.Message == nil {
		return "", ErrMissingPayload
	}
	return *payload.Message, nil
}
