package embeddings

import "time"

// Config controls the embedding client behavior
type Config struct {
	// BaseURL points to the service providing POST /embeddings
	BaseURL string
	// DefaultModel is the default embedding model
	DefaultModel string
	// Timeout for outbound HTTP calls
	Timeout time.Duration
	// EnableRedis enables the Redis-backed cache layer
	EnableRedis bool
	// RedisAddr in host:port form when EnableRedis is true
	RedisAddr string
	// CacheTTL sets TTL for cached embedding entries
	CacheTTL time.Duration
	// MaxLRU controls in-process LRU size
	MaxLRU int
}
