// Package api provides the HTTP API for starting, steering and inspecting
// landscape research sessions.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string
}
