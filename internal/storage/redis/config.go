package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// SessionTTL expires session records. Zero keeps them until the session closes.
	SessionTTL time.Duration

	// PurgeOnStart deletes leftover keys from a previous process.
	// Sessions only live as long as their connections, so a restart orphans all of them.
	PurgeOnStart bool
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		SessionTTL:   0,
		PurgeOnStart: true,
	}
}
