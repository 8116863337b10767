// Package server tracks the set of live connections in an internally
// synchronized registry that the hub consults for every fan-out.
package server

import "sync"

// Registry is the thread-safe set of active connections. It is owned by
// whoever constructs the hub and passed in by reference; mutations and
// snapshot reads may happen from concurrent connection-lifecycle goroutines.
type Registry struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewRegistry returns an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[*Client]struct{})}
}

// Register adds a connection to the active set.
func (r *Registry) Register(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client] = struct{}{}
}

// Unregister removes a connection and reports whether it was present.
// Removing a connection that already dropped is a no-op, so disconnects
// observed from both pumps are safe.
func (r *Registry) Unregister(client *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[client]; !ok {
		return false
	}
	delete(r.clients, client)
	return true
}

// Contains reports whether the connection is currently registered.
func (r *Registry) Contains(client *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[client]
	return ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Snapshot returns a point-in-time copy of the registered connections.
// Registrations and removals after the call do not affect the returned slice.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}
