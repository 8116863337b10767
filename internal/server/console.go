// Package server reads operator console input and turns each line into a
// broadcast with the distinguished server sender.
package server

import (
	"bufio"
	"io"
	"log"
	"strings"
)

// Console is the process-wide operator input source. Each non-blank line read
// from input is persisted as a server message and fanned out to every active
// connection, exactly like client traffic.
type Console struct {
	hub   *Hub
	input io.Reader
}

// NewConsole creates a console reader feeding the given hub. Production wires
// os.Stdin; tests inject any line-oriented reader.
func NewConsole(hub *Hub, input io.Reader) *Console {
	return &Console{hub: hub, input: input}
}

// Run reads lines until the input source is exhausted. It should be called
// in its own goroutine.
func (c *Console) Run() {
	scanner := bufio.NewScanner(c.input)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		log.Printf("Broadcasting console message: %s", line)
		c.hub.BroadcastServerMessage(line)
	}
	if err := scanner.Err(); err != nil {
		log.Printf("Console input error: %v", err)
	}
}
