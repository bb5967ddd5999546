package linkpreview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores previews by normalized URL.
type Cache interface {
	Get(ctx context.Context, key string) (Preview, bool, error)
	Set(ctx context.Context, key string, p Preview, ttl time.Duration) error
}

// MemoryCache is a bounded in-process cache. When full, expired entries are
// dropped first and then the entry closest to expiry.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	max     int
	now     func() time.Time
}

type memoryEntry struct {
	preview   Preview
	expiresAt time.Time
}

// NewMemoryCache creates a cache holding at most maxEntries previews.
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		max:     maxEntries,
		now:     time.Now,
	}
}

// Get returns the cached preview for key if present and unexpired.
func (c *MemoryCache) Get(_ context.Context, key string) (Preview, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Preview{}, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return Preview{}, false, nil
	}
	return e.preview, true, nil
}

// Set stores p under key for ttl.
func (c *MemoryCache) Set(_ context.Context, key string, p Preview, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.max {
		c.evict(now)
	}
	c.entries[key] = memoryEntry{preview: p, expiresAt: now.Add(ttl)}
	return nil
}

func (c *MemoryCache) evict(now time.Time) {
	var (
		victim string
		oldest time.Time
	)
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			continue
		}
		if victim == "" || e.expiresAt.Before(oldest) {
			victim, oldest = k, e.expiresAt
		}
	}
	if len(c.entries) >= c.max && victim != "" {
		delete(c.entries, victim)
	}
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCache stores previews as JSON strings in Redis.
type RedisCache struct {
	client redis.Cmdable
	prefix string
}

// NewRedisCache creates a Redis-backed cache. Keys are prefixed with
// "linkpreview:".
func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client, prefix: "linkpreview:"}
}

// Get returns the cached preview for key.
func (c *RedisCache) Get(ctx context.Context, key string) (Preview, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Preview{}, false, nil
	}
	if err != nil {
		return Preview{}, false, fmt.Errorf("failed to read preview cache: %w", err)
	}
	var p Preview
	if err := json.Unmarshal(raw, &p); err != nil {
		return Preview{}, false, fmt.Errorf("failed to decode cached preview: %w", err)
	}
	return p, true, nil
}

// Set stores p under key for ttl.
func (c *RedisCache) Set(ctx context.Context, key string, p Preview, ttl time.Duration) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write preview cache: %w", err)
	}
	return nil
}
