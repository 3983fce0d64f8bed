package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamCache remembers resolved stream URLs by page URL.
type StreamCache interface {
	Get(ctx context.Context, pageURL string) (string, bool, error)
	Set(ctx context.Context, pageURL, streamURL string, ttl time.Duration) error
}

type RedisStreamCache struct {
	client *redis.Client
	prefix string
}

var _ StreamCache = (*RedisStreamCache)(nil)

func NewRedisStreamCache(client *redis.Client, prefix string) *RedisStreamCache {
	return &RedisStreamCache{client: client, prefix: prefix}
}

func (c *RedisStreamCache) Get(ctx context.Context, pageURL string) (string, bool, error) {
	url, err := c.client.Get(ctx, c.prefix+pageURL).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cached stream for %s: %w", pageURL, err)
	}
	return url, true, nil
}

func (c *RedisStreamCache) Set(ctx context.Context, pageURL, streamURL string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+pageURL, streamURL, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache stream for %s: %w", pageURL, err)
	}
	return nil
}

type memoryEntry struct {
	url     string
	expires time.Time
}

// MemoryStreamCache is a process-local StreamCache.
type MemoryStreamCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

var _ StreamCache = (*MemoryStreamCache)(nil)

func NewMemoryStreamCache() *MemoryStreamCache {
	return &MemoryStreamCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryStreamCache) Get(_ context.Context, pageURL string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[pageURL]
	if !ok {
		return "", false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, pageURL)
		return "", false, nil
	}
	return e.url, true, nil
}

func (c *MemoryStreamCache) Set(_ context.Context, pageURL, streamURL string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[pageURL] = memoryEntry{url: streamURL, expires: c.now().Add(ttl)}
	return nil
}
