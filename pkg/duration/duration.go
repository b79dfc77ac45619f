// Package duration provides canonical time constants for the apirisk
// servers and commands. Reference these instead of scattering literal
// time.Duration values through transport setup code.
package duration

import "time"

// MCP HTTP transport timeouts.
const (
	// ServerReadHeader bounds request header reads (slowloris protection).
	ServerReadHeader = 10 * time.Second

	// ServerRead bounds full request body reads.
	ServerRead = 30 * time.Second

	// ServerIdle releases idle keep-alive connections.
	ServerIdle = 30 * time.Second

	// ServerShutdown is the graceful-shutdown drain window.
	ServerShutdown = 15 * time.Second
)

// Signal handling.
const (
	// SignalGrace is how long a command waits after the first interrupt
	// before a second interrupt force-exits.
	SignalGrace = 30 * time.Second
)
