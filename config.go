package jobhost

import "time"

// Config holds configuration for a dispatcher.
type Config struct {
	// ShutdownTimeout is the maximum time Stop waits for running ticks.
	ShutdownTimeout time.Duration

	// ReleaseTimeout bounds the lease release issued at the end of a tick.
	// The release runs on a context detached from the tick so that a
	// cancelled tick still gives its lease back.
	ReleaseTimeout time.Duration

	// TracerName is the instrumentation scope used for tick and job spans.
	TracerName string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ShutdownTimeout: 30 * time.Second,
		ReleaseTimeout:  10 * time.Second,
		TracerName:      "github.com/xraph/jobhost",
	}
}
