// Package pagecache stores rendered profile pages in Redis and drops them when
// the underlying record changes.
package pagecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"birdpage/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "page:user:"
	DefaultTTL = 10 * time.Minute
)

// Cache is a Redis-backed page cache.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to the Redis instance at dsn and verifies it answers.
func New(dsn string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.ConnMaxIdleTime = 5 * time.Minute

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(rdb, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Key is the Redis key holding the page of username. Spellings that resolve to
// the same stored record share one key.
func Key(username string) string {
	return keyPrefix + models.NormalizeUsername(username)
}

// Get returns the cached page of username. ok is false on a miss.
func (c *Cache) Get(ctx context.Context, username string) (page []byte, ok bool, err error) {
	page, err = c.rdb.Get(ctx, Key(username)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return page, true, nil
}

// Set stores the page of username for the cache TTL.
func (c *Cache) Set(ctx context.Context, username string, page []byte) error {
	return c.rdb.Set(ctx, Key(username), page, c.ttl).Err()
}

// Invalidate drops the cached page of username so the next read regenerates it.
func (c *Cache) Invalidate(ctx context.Context, username string) error {
	return c.rdb.Del(ctx, Key(username)).Err()
}

// Close releases the Redis connection pool.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Nop is a cache that never stores anything. It is used when no Redis is configured.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error { return nil }
func (Nop) Invalidate(context.Context, string) error { return nil }
func (Nop) Close() error { return nil }
