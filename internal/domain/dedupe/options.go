package dedupe

import (
	"time"

	"github.com/okian/loftrank/pkg/logger"
)

// Option applies a configuration option to the InMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of ids to keep in memory.
// If maxSize > 0: bounded, the oldest id is evicted first.
// If maxSize <= 0: unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// RedisOption applies a configuration option to the RedisDeduper.
type RedisOption func(*RedisDeduper)

// WithTTL sets how long a request id is remembered.
func WithTTL(ttl time.Duration) RedisOption {
	return func(d *RedisDeduper) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the redis key namespace.
func WithKeyPrefix(prefix string) RedisOption {
	return func(d *RedisDeduper) {
		if prefix != "" {
			d.prefix = prefix
		}
	}
}

// WithRedisLogger sets the logger used when redis is unreachable.
func WithRedisLogger(l logger.Logger) RedisOption {
	return func(d *RedisDeduper) {
		if l != nil {
			d.logger = l
		}
	}
}
