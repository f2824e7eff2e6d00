package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is what the cache remembers about a provisioned team.
type Entry struct {
	RoleID     string `json:"role_id,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
}

// Cache is a read-through cache of team name → platform ids.
type Cache interface {
	Get(ctx context.Context, team string) (Entry, bool, error)
	Set(ctx context.Context, team string, e Entry) error
	Forget(ctx context.Context, team string) error
}

func cacheKey(team string) string {
	return strings.ToLower(strings.TrimSpace(team))
}

// MemoryCache keeps entries in process memory.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	Entry
	storedAt time.Time
}

// NewMemoryCache creates a cache whose entries expire after ttl. Zero keeps them forever.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, team string) (Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[cacheKey(team)]
	if !ok {
		return Entry{}, false, nil
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		return Entry{}, false, nil
	}
	return e.Entry, true, nil
}

func (c *MemoryCache) Set(_ context.Context, team string, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(team)] = memoryEntry{Entry: e, storedAt: c.now()}
	return nil
}

func (c *MemoryCache) Forget(_ context.Context, team string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(team))
	return nil
}

// RedisCache stores entries in Redis so several bot processes share them.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisCacheWithClient(client, ttl), nil
}

// NewRedisCacheWithClient creates a cache from an existing client.
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: "ldm:team:", ttl: ttl}
}

func (c *RedisCache) key(team string) string {
	return c.prefix + cacheKey(team)
}

func (c *RedisCache) Get(ctx context.Context, team string) (Entry, bool, error) {
	data, err := c.client.Get(ctx, c.key(team)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return e, true, nil
}

func (c *RedisCache) Set(ctx context.Context, team string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(team), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Forget(ctx context.Context, team string) error {
	if err := c.client.Del(ctx, c.key(team)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
