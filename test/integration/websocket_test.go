package integration

import (
	"testing"
	"time"

	"lanchat/internal/server"
	"lanchat/internal/store"
	"lanchat/test/testhelpers"
)

const readTimeout = 2 * time.Second

func TestJoinReceivesWelcomeThenHistory(t *testing.T) {
	s := newChatServer(t, server.DefaultConfig())

	t1, err := s.store.Append(store.SenderClient, "hi")
	if err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}
	t2, err := s.store.Append(store.SenderServer, "yo")
	if err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}

	conn, err := testhelpers.ConnectWebSocket(s.wsURL())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer testhelpers.CloseWebSocket(conn)

	welcome := testhelpers.ReadEnvelope(t, conn, readTimeout)
	testhelpers.AssertEnvelope(t, welcome, "system", "", "Hi client, welcome to this server")
	if welcome.Timestamp != "" {
		t.Errorf("System envelope must not carry a timestamp, got %q", welcome.Timestamp)
	}

	first := testhelpers.ReadEnvelope(t, conn, readTimeout)
	testhelpers.AssertEnvelope(t, first, "history", "client", "hi")

	second := testhelpers.ReadEnvelope(t, conn, readTimeout)
	testhelpers.AssertEnvelope(t, second, "history", "server", "yo")

	ts1, err := time.Parse(time.RFC3339Nano, first.Timestamp)
	if err != nil {
		t.Fatalf("History timestamp is not RFC3339: %v", err)
	}
	ts2, err := time.Parse(time.RFC3339Nano, second.Timestamp)
	if err != nil {
		t.Fatalf("History timestamp is not RFC3339: %v", err)
	}
	if !ts1.Equal(t1) || !ts2.Equal(t2) {
		t.Errorf("History timestamps do not match persisted rows: %v/%v vs %v/%v", ts1, ts2, t1, t2)
	}
	if ts2.Before(ts1) {
		t.Error("History replay is not in ascending time order")
	}
}

func TestBroadcastReachesAllClientsAndPersists(t *testing.T) {
	s := newChatServer(t, server.DefaultConfig())

	sender, err := testhelpers.ConnectWebSocket(s.wsURL())
	if err != nil {
		t.Fatalf("Failed to connect sender: %v", err)
	}
	defer testhelpers.CloseWebSocket(sender)
	testhelpers.ReadEnvelope(t, sender, readTimeout) // welcome

	observer, err := testhelpers.ConnectWebSocket(s.wsURL())
	if err != nil {
		t.Fatalf("Failed to connect observer: %v", err)
	}
	defer testhelpers.CloseWebSocket(observer)
	testhelpers.ReadEnvelope(t, observer, readTimeout) // welcome

	if err := testhelpers.SendChatMessage(sender, "x"); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}

	fromSender := testhelpers.ReadEnvelope(t, sender, readTimeout)
	testhelpers.AssertEnvelope(t, fromSender, "message", "client", "x")

	fromObserver := testhelpers.ReadEnvelope(t, observer, readTimeout)
	testhelpers.AssertEnvelope(t, fromObserver, "message", "client", "x")

	messages, err := s.store.Recent(10)
	if err != nil {
		t.Fatalf("Failed to read store: %v", err)
	}
	if len(messages) != 1 || messages[0].Text != "x" || messages[0].Sender != store.SenderClient {
		t.Errorf("Store does not contain the broadcast message, got %+v", messages)
	}

	// A client joining afterwards sees the message in its history replay.
	late, err := testhelpers.ConnectWebSocket(s.wsURL())
	if err != nil {
		t.Fatalf("Failed to connect late joiner: %v", err)
	}
	defer testhelpers.CloseWebSocket(late)
	testhelpers.ReadEnvelope(t, late, readTimeout) // welcome
	replayed := testhelpers.ReadEnvelope(t, late, readTimeout)
	testhelpers.AssertEnvelope(t, replayed, "history", "client", "x")
}

func TestMalformedFramesAreDroppedWithoutClosingConnection(t *testing.T) {
	s := newChatServer(t, server.DefaultConfig())

	sender, err := testhelpers.ConnectWebSocket(s.wsURL())
	if err != nil {
		t.Fatalf("Failed to connect sender: %v", err)
	}
	defer testhelpers.CloseWebSocket(sender)
	testhelpers.ReadEnvelope(t, sender, readTimeout) // welcome

	observer, err := testhelpers.ConnectWebSocket(s.wsURL())
	if err != nil {
		t.Fatalf("Failed to connect observer: %v", err)
	}
	defer testhelpers.CloseWebSocket(observer)
	testhelpers.ReadEnvelope(t, observer, readTimeout) // welcome

	if err := testhelpers.SendRawFrame(sender, []byte("not json at all")); err != nil {
		t.Fatalf("Failed to send raw frame: %v", err)
	}
	if err := testhelpers.SendRawFrame(sender, []byte(`{"sender":"client"}`)); err != nil {
		t.Fatalf("Failed to send raw frame: %v", err)
	}
	if err := testhelpers.SendChatMessage(sender, "ok"); err != nil {
		t.Fatalf("Failed to send valid message after malformed frames: %v", err)
	}

	// The first frame the observer sees is the valid message: the malformed
	// frames produced no broadcast and did not close the sender's connection.
	received := testhelpers.ReadEnvelope(t, observer, readTimeout)
	testhelpers.AssertEnvelope(t, received, "message", "client", "ok")

	messages, err := s.store.Recent(10)
	if err != nil {
		t.Fatalf("Failed to read store: %v", err)
	}
	if len(messages) != 1 {
		t.Errorf("Expected exactly one persisted message, got %d", len(messages))
	}
}

func TestOperatorBroadcastReachesClients(t *testing.T) {
	s := newChatServer(t, server.DefaultConfig())

	conn, err := testhelpers.ConnectWebSocket(s.wsURL())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer testhelpers.CloseWebSocket(conn)
	testhelpers.ReadEnvelope(t, conn, readTimeout) // welcome

	s.hub.BroadcastServerMessage("server says hello")

	received := testhelpers.ReadEnvelope(t, conn, readTimeout)
	testhelpers.AssertEnvelope(t, received, "message", "server", "server says hello")

	messages, err := s.store.Recent(10)
	if err != nil {
		t.Fatalf("Failed to read store: %v", err)
	}
	if len(messages) != 1 || messages[0].Sender != store.SenderServer {
		t.Errorf("Operator message not persisted with server sender, got %+v", messages)
	}
}

func TestDisconnectedClientDoesNotStallBroadcast(t *testing.T) {
	s := newChatServer(t, server.DefaultConfig())

	leaver, err := testhelpers.ConnectWebSocket(s.wsURL())
	if err != nil {
		t.Fatalf("Failed to connect leaver: %v", err)
	}
	testhelpers.ReadEnvelope(t, leaver, readTimeout) // welcome

	stayer, err := testhelpers.ConnectWebSocket(s.wsURL())
	if err != nil {
		t.Fatalf("Failed to connect stayer: %v", err)
	}
	defer testhelpers.CloseWebSocket(stayer)
	testhelpers.ReadEnvelope(t, stayer, readTimeout) // welcome

	if err := testhelpers.CloseWebSocket(leaver); err != nil {
		t.Fatalf("Failed to close leaver: %v", err)
	}
	// Give the server a moment to process the disconnect.
	time.Sleep(100 * time.Millisecond)

	s.hub.BroadcastServerMessage("still here?")

	received := testhelpers.ReadEnvelope(t, stayer, readTimeout)
	testhelpers.AssertEnvelope(t, received, "message", "server", "still here?")
}

func TestHistoryReplayIsBoundedByConfiguredLimit(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.HistoryLimit = 3
	s := newChatServer(t, cfg)

	for _, text := range []string{"one", "two", "three", "four", "five"} {
		if _, err := s.store.Append(store.SenderClient, text); err != nil {
			t.Fatalf("Failed to seed store: %v", err)
		}
	}

	conn, err := testhelpers.ConnectWebSocket(s.wsURL())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer testhelpers.CloseWebSocket(conn)

	testhelpers.ReadEnvelope(t, conn, readTimeout) // welcome

	for _, expected := range []string{"three", "four", "five"} {
		envelope := testhelpers.ReadEnvelope(t, conn, readTimeout)
		testhelpers.AssertEnvelope(t, envelope, "history", "client", expected)
	}

	testhelpers.ExpectNoEnvelope(t, conn, 300*time.Millisecond)
}
