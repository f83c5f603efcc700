package dedupe

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/loftrank/pkg/logger"
	"github.com/okian/loftrank/pkg/metrics"
)

// claimScript returns the existing owner, or records ARGV[1] with a TTL of
// ARGV[2] milliseconds and returns nil.
var claimScript = redis.NewScript(`
local existing = redis.call("GET", KEYS[1])
if existing then
    return existing
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return false
`)

// RedisDeduper shares request ids across service instances. When redis is
// unreachable it fails open: the request is treated as new.
type RedisDeduper struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger logger.Logger
	size   atomic.Int64
}

// NewRedisDeduper creates a deduper on an existing client.
func NewRedisDeduper(client redis.UniversalClient, opts ...RedisOption) *RedisDeduper {
	d := &RedisDeduper{
		client: client,
		prefix: "loftrank:import:",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewRedisClient connects to addr.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// Ping checks connectivity.
func (d *RedisDeduper) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *RedisDeduper) SeenAndRecord(ctx context.Context, id, owner string) (string, bool) {
	existing, err := claimScript.Run(ctx, d.client, []string{d.prefix + id}, owner, d.ttl.Milliseconds()).Text()
	switch {
	case errors.Is(err, redis.Nil):
		d.size.Add(1)
		return owner, false
	case err != nil:
		d.warn(ctx, "dedupe claim failed, treating request as new", id, err)
		return owner, false
	default:
		return existing, true
	}
}

func (d *RedisDeduper) Unrecord(ctx context.Context, id string) {
	n, err := d.client.Del(ctx, d.prefix+id).Result()
	if err != nil {
		d.warn(ctx, "dedupe release failed", id, err)
		return
	}
	if n > 0 {
		d.size.Add(-1)
	}
}

// Size is the number of ids recorded by this instance.
func (d *RedisDeduper) Size() int64 {
	return d.size.Load()
}

// Close closes the underlying client.
func (d *RedisDeduper) Close() error {
	return d.client.Close()
}

func (d *RedisDeduper) warn(ctx context.Context, msg, id string, err error) {
	metrics.RecordErrorByComponent("dedupe", "redis")
	if d.logger != nil {
		d.logger.Warn(ctx, msg, logger.String("requestId", id), logger.Error(err))
	}
}
