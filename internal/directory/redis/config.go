package redis

import "time"

// Config holds Redis connection and key settings for the directory.
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// KeyPrefix namespaces every key written by the directory.
	KeyPrefix string
	// Channel receives one JSON event per notification.
	Channel string
	// Timeout bounds each notification round trip.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for the Redis directory.
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "fairway",
		Channel:      "fairway:directory",
		Timeout:      2 * time.Second,
	}
}
