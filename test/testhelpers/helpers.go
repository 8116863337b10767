// Package testhelpers provides common utilities for exercising the chat
// server over real HTTP and WebSocket connections in integration tests.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Envelope mirrors the wire frames the server sends, decoded loosely so
// tests can assert on exactly the fields they care about.
type Envelope struct {
	Type      string `json:"type"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ConnectWebSocket dials the chat endpoint with the default allowed origin.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Origin", "http://localhost:8080")

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendChatMessage sends one inbound frame of the shape {"message": text}.
func SendChatMessage(conn *websocket.Conn, text string) error {
	return conn.WriteJSON(map[string]string{"message": text})
}

// SendRawFrame sends an arbitrary payload, used to provoke decode errors.
func SendRawFrame(conn *websocket.Conn, data []byte) error {
	return conn.WriteMessage(websocket.TextMessage, data)
}

// ReadEnvelope reads the next outbound frame, failing the test if nothing
// arrives within the timeout.
func ReadEnvelope(t *testing.T, conn *websocket.Conn, timeout time.Duration) Envelope {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read envelope: %v", err)
	}

	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		t.Fatalf("Failed to decode envelope %q: %v", frame, err)
	}
	return envelope
}

// ExpectNoEnvelope asserts that no frame arrives within the wait window.
func ExpectNoEnvelope(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	if _, frame, err := conn.ReadMessage(); err == nil {
		t.Fatalf("Expected no frame but received: %s", frame)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// AssertEnvelope checks the kind, sender, and message of a received frame.
func AssertEnvelope(t *testing.T, envelope Envelope, kind, sender, message string) {
	t.Helper()

	if envelope.Type != kind {
		t.Errorf("Expected envelope type %q, got %q", kind, envelope.Type)
	}
	if envelope.Sender != sender {
		t.Errorf("Expected sender %q, got %q", sender, envelope.Sender)
	}
	if envelope.Message != message {
		t.Errorf("Expected message %q, got %q", message, envelope.Message)
	}
}
