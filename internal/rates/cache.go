package rates

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache remembers the last live rate seen for each pair.
type Cache interface {
	Get(ctx context.Context, from, to string) (float64, bool, error)
	Set(ctx context.Context, from, to string, rate float64) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	rate    float64
	expires time.Time
}

// NewMemoryCache creates a cache whose entries expire after ttl (never if
// ttl <= 0).
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, from, to string) (float64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[pairKey(from, to)]
	if !ok {
		return 0, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		return 0, false, nil
	}
	return e.rate, true, nil
}

func (c *MemoryCache) Set(_ context.Context, from, to string, rate float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := memoryEntry{rate: rate}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.entries[pairKey(from, to)] = e
	return nil
}

// RedisCache shares last-known rates between replicas.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps an existing client. Keys are namespaced by prefix.
func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "remitwise"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis parses a redis:// URL and pings the server.
func DialRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (c *RedisCache) key(from, to string) string {
	return c.prefix + ":rate:" + pairKey(from, to)
}

func (c *RedisCache) Get(ctx context.Context, from, to string) (float64, bool, error) {
	v, err := c.client.Get(ctx, c.key(from, to)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get rate: %w", err)
	}
	rate, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt cached rate %q: %w", v, err)
	}
	return rate, true, nil
}

func (c *RedisCache) Set(ctx context.Context, from, to string, rate float64) error {
	v := strconv.FormatFloat(rate, 'f', -1, 64)
	if err := c.client.Set(ctx, c.key(from, to), v, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set rate: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func pairKey(from, to string) string {
	return from + ":" + to
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
