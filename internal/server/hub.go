// Package server coordinates connection registration, history replay, and
// message broadcast for the LAN chat service via the Hub type.
package server

import (
	"context"
	"log"
	"sync"
	"time"

	"lanchat/internal/store"
)

// MessageStore is the persistence collaborator the hub writes every message
// through before any fan-out.
type MessageStore interface {
	Append(sender store.Sender, text string) (time.Time, error)
	Recent(limit int) ([]store.Message, error)
}

// inboundMessage is one unit of traffic headed for persist-then-broadcast.
// origin is nil for operator console input.
type inboundMessage struct {
	origin *Client
	sender store.Sender
	text   string
}

// Hub is the broadcast engine. A single Run loop consumes registrations,
// removals, and inbound messages, so each message's store append completes
// before its fan-out begins and broadcast order equals persist-completion
// order.
type Hub struct {
	cfg        Config
	registry   *Registry
	store      MessageStore
	inbound    chan inboundMessage
	register   chan *Client
	unregister chan *Client
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a hub that registers connections in registry and persists
// messages through messages. The registry is shared by reference so callers
// can observe the live connection set.
func NewHub(registry *Registry, messages MessageStore, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:        cfg.sanitized(),
		registry:   registry,
		store:      messages,
		inbound:    make(chan inboundMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for registering new clients.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// BroadcastServerMessage persists text as an operator message and fans it out
// to every active connection.
func (h *Hub) BroadcastServerMessage(text string) {
	h.submit(nil, store.SenderServer, text)
}

func (h *Hub) submit(origin *Client, sender store.Sender, text string) {
	select {
	case h.inbound <- inboundMessage{origin: origin, sender: sender, text: text}:
	case <-h.ctx.Done():
	}
}

// notifyDisconnect hands a dropped connection to the hub loop for removal.
// Safe to call after shutdown has begun.
func (h *Hub) notifyDisconnect(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Run starts the hub's event loop. It should be called in its own goroutine
// as it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case msg := <-h.inbound:
			h.handleInbound(msg)
		}
	}
}

// handleRegister admits a new connection: greet it, replay history to it,
// then mark it active so subsequent fan-outs include it. Because the loop is
// serialized, the history batch always precedes any live message the client
// receives after joining.
func (h *Hub) handleRegister(client *Client) {
	if client == nil {
		log.Printf("Received nil client registration; skipping")
		return
	}

	h.registry.Register(client)
	log.Printf("Client %s registered from %s. Total clients: %d", client.id, client.addr, h.registry.Len())

	h.sendWelcome(client)
	h.replayHistory(client)
	client.markActive()
}

func (h *Hub) sendWelcome(client *Client) {
	frame, err := EncodeSystem(h.cfg.WelcomeMessage)
	if err != nil {
		log.Printf("Error encoding welcome for client %s: %v", client.id, err)
		return
	}
	if !h.enqueue(client, frame) {
		log.Printf("Dropped welcome for client %s: send buffer full", client.id)
	}
}

// replayHistory sends the recent backlog to a newly joined connection, one
// history envelope per stored message, in ascending time order. A store
// failure logs and replays nothing; the join itself still succeeds.
func (h *Hub) replayHistory(client *Client) {
	history, err := h.store.Recent(h.cfg.HistoryLimit)
	if err != nil {
		log.Printf("History replay unavailable for client %s: %v", client.id, err)
		return
	}

	for _, msg := range history {
		frame, err := EncodeHistory(msg)
		if err != nil {
			log.Printf("Error encoding history entry for client %s: %v", client.id, err)
			continue
		}
		if !h.enqueue(client, frame) {
			log.Printf("Dropped history tail for client %s: send buffer full", client.id)
			return
		}
	}
}

func (h *Hub) handleUnregister(client *Client) {
	if client == nil {
		return
	}
	if h.registry.Unregister(client) {
		client.markClosed()
		close(client.send)
		log.Printf("Client %s unregistered from %s. Total clients: %d", client.id, client.addr, h.registry.Len())
	}
}

// handleInbound is the persist-then-broadcast path shared by client traffic
// and console input. The message is appended to the store first; if that
// fails it is never fanned out, so a reconnecting client can always find
// every message it saw live in its history replay.
func (h *Hub) handleInbound(msg inboundMessage) {
	createdAt, err := h.store.Append(msg.sender, msg.text)
	if err != nil {
		log.Printf("Message from %s not persisted, skipping broadcast: %v", describeOrigin(msg.origin), err)
		return
	}

	frame, err := EncodeMessage(store.Message{
		Sender:    msg.sender,
		Text:      msg.text,
		CreatedAt: createdAt,
	})
	if err != nil {
		log.Printf("Error encoding message from %s: %v", describeOrigin(msg.origin), err)
		return
	}

	h.fanOut(frame)
}

// fanOut delivers one encoded frame to every active connection in a
// point-in-time registry snapshot. A recipient whose send fails is removed
// afterwards without aborting delivery to its siblings.
func (h *Hub) fanOut(frame []byte) {
	clients := h.registry.Snapshot()

	var failed []*Client
	delivered := 0
	for _, client := range clients {
		if client.State() != StateActive {
			continue
		}
		if h.safeSend(client, frame) {
			delivered++
		} else {
			failed = append(failed, client)
		}
	}

	log.Printf("Broadcast delivered to %d clients", delivered)
	h.removeFailedClients(failed)
}

func (h *Hub) safeSend(client *Client, frame []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	if !h.registry.Contains(client) || client.State() == StateClosed {
		return false
	}

	return h.enqueue(client, frame)
}

// enqueue attempts a non-blocking send so one slow connection can never
// stall the rest of a fan-out.
func (h *Hub) enqueue(client *Client, frame []byte) bool {
	select {
	case client.send <- frame:
		return true
	default:
		return false
	}
}

func (h *Hub) removeFailedClients(failed []*Client) {
	for _, client := range failed {
		if h.registry.Unregister(client) {
			client.markClosed()
			close(client.send)
			log.Printf("Client %s removed after failed delivery", client.id)
		}
	}
}

// startPumps launches the read and write goroutines for an accepted
// connection, tracked for shutdown.
func (h *Hub) startPumps(client *Client) {
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// shutdownClients closes every active transport so the pump goroutines
// unwind on their own read/write errors.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	clients := h.registry.Snapshot()
	for _, client := range clients {
		if h.registry.Unregister(client) {
			client.markClosed()
			close(client.send)
		}
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				log.Printf("Error closing client connection from %s: %v", client.addr, err)
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown stops the hub loop, closes all connections, and waits for the
// pump goroutines to finish or the timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

func describeOrigin(client *Client) string {
	if client == nil {
		return "console"
	}
	return "client " + client.id
}
