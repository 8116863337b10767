// Package server provides configuration loading from the environment with
// sane defaults for every runtime knob.
package server

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the server configuration settings.
type Config struct {
	Port                    string        `envconfig:"SERVER_PORT" default:":8080"`
	AllowedOrigins          []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	MaxMessageSize          int64         `envconfig:"MAX_MESSAGE_SIZE" default:"512"`
	RateLimitBurst          int           `envconfig:"RATE_LIMIT_BURST" default:"5"`
	RateLimitRefillInterval time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"1s"`
	HistoryLimit            int           `envconfig:"HISTORY_LIMIT" default:"50"`
	DatabasePath            string        `envconfig:"DATABASE_PATH" default:"lanchat.db"`
	WelcomeMessage          string        `envconfig:"WELCOME_MESSAGE" default:"Hi client, welcome to this server"`
}

// LoadConfig reads configuration from environment variables, falling back to
// defaults for anything unset or out of range.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg.sanitized(), nil
}

// DefaultConfig returns the built-in defaults without touching the environment.
func DefaultConfig() Config {
	return Config{
		Port:                    ":8080",
		AllowedOrigins:          []string{"http://localhost:8080"},
		MaxMessageSize:          512,
		RateLimitBurst:          5,
		RateLimitRefillInterval: time.Second,
		HistoryLimit:            50,
		DatabasePath:            "lanchat.db",
		WelcomeMessage:          "Hi client, welcome to this server",
	}
}

// sanitized replaces zero and nonsense values with the defaults so a partial
// Config built by hand still yields a working server.
func (c Config) sanitized() Config {
	defaults := DefaultConfig()

	if c.Port == "" {
		c.Port = defaults.Port
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaults.MaxMessageSize
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = defaults.RateLimitBurst
	}
	if c.RateLimitRefillInterval <= 0 {
		c.RateLimitRefillInterval = defaults.RateLimitRefillInterval
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = defaults.HistoryLimit
	}
	if c.DatabasePath == "" {
		c.DatabasePath = defaults.DatabasePath
	}
	if c.WelcomeMessage == "" {
		c.WelcomeMessage = defaults.WelcomeMessage
	}

	return c
}
