package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"lanchat/internal/server"
	"lanchat/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// A server without its log is useless: refuse to start if the store
	// cannot be opened.
	messages, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open message store: %v", err)
	}
	defer func() {
		if err := messages.Close(); err != nil {
			log.Printf("Error closing message store: %v", err)
		}
	}()

	registry := server.NewRegistry()
	hub := server.NewHub(registry, messages, cfg)
	go hub.Run()

	console := server.NewConsole(hub, os.Stdin)
	go console.Run()

	mux := server.SetupRoutes(hub, cfg)
	httpServer := server.CreateServer(cfg.Port, mux)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.StartServer(httpServer)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	case <-ctx.Done():
	}

	if err := server.ShutdownServer(httpServer, 10*time.Second); err != nil {
		log.Printf("HTTP shutdown incomplete: %v", err)
	}
	if err := hub.Shutdown(5 * time.Second); err != nil {
		log.Printf("Hub shutdown incomplete: %v", err)
	}
}
