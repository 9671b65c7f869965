// Package constants provides values shared by the CLI and the web dashboard.
package constants

// Dashboard constants
const (
	// EventChannelBuffer is the buffer size of each SSE listener channel
	EventChannelBuffer = 100

	// DefaultLogLines is how many log lines /logs returns without ?lines
	DefaultLogLines = 200

	// DefaultRunsLimit is how many runs the history endpoints list by default
	DefaultRunsLimit = 20

	// MaxRunsLimit caps ?limit on the run history endpoint
	MaxRunsLimit = 500
)

// Shutdown constants
const (
	// ShutdownTimeoutSeconds bounds the graceful shutdown of the web server
	ShutdownTimeoutSeconds = 30
)
