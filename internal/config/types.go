package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration for the unisrv CLI.
type Config struct {
	// APIHost is the control-plane host, without scheme (e.g. "api.unisrv.io").
	APIHost string
	// Insecure switches the API scheme to http/ws instead of https/wss.
	// Used for local development against a control plane on localhost.
	Insecure bool
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string
	// HealthWindow is how long a freshly booted instance must hold its event
	// stream open after reaching the running state before it is considered
	// healthy during a rollout.
	HealthWindow time.Duration
	// StopTimeout is the graceful shutdown timeout passed to instance stops.
	StopTimeout time.Duration
}

// URL builds an HTTP(S) API URL for the given path.
func (c Config) URL(path string) string {
	scheme := "https"
	if c.Insecure {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s%s", scheme, c.APIHost, path)
}

// WSURL builds a websocket URL for the given path.
func (c Config) WSURL(path string) string {
	scheme := "wss"
	if c.Insecure {
		scheme = "ws"
	}
	return fmt.Sprintf("%s://%s%s", scheme, c.APIHost, path)
}
