package pacer

import "time"

// Config holds configuration for a Pacer.
type Config struct {
	// MinSpacing is the minimum interval between the end of one
	// successful backend call and the start of the next dispatch.
	// The default of 21s fits a 3-requests-per-minute quota with a
	// little headroom.
	MinSpacing time.Duration

	// MaxRetries is the default number of retries after a failed
	// invocation. Individual jobs may override it.
	MaxRetries int

	// RetryBackoff is the default fixed delay between retry attempts.
	// Individual jobs may override the whole backoff strategy.
	RetryBackoff time.Duration

	// ShutdownTimeout is the maximum time Stop waits for the in-flight
	// dispatch before cancelling it.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinSpacing:      21 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    1 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}
