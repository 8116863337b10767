// Package server implements the broadcast core of the LAN chat service: the
// connection registry, the hub that persists and fans out every message, the
// wire envelope codec, and the HTTP/WebSocket surface in front of them.
//
// The implementation is organized into specialized files for configuration,
// the hub, clients, the codec, routing, and HTTP handlers to keep the
// codebase maintainable and testable as the project grows.
package server
