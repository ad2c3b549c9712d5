// Package tokencache implements the process-wide key-value cache described
// for the provider pool (section 4.4/4.5/9): a named store with TTL per
// entry, explicit construction and shutdown, passed to providers and
// refiners rather than reached for as a singleton. It backs provider login
// token caches (keyed by username), show-id lookup caches, and refiner
// result memoization.
//
// MemoryCache guards its map with one sync.RWMutex: Get takes the read
// lock and Set/Delete take the write lock, so reads are not lock-free.
// Cache misses degrade to recomputation by the caller; Get never returns
// an error, only ok=false.
package tokencache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"catalogizer/subtitles/internal/metrics"
)

// Cache is the interface providers and refiners depend on. It never fails —
// a miss or a backend error both surface as ok=false so the caller falls
// back to recomputing the value.
type Cache interface {
	Get(ctx context.Context, name, key string) (value string, ok bool)
	Set(ctx context.Context, name, key, value string, ttl time.Duration)
	Delete(ctx context.Context, name, key string)
	Close() error
}

type entry struct {
	value   string
	expires time.Time
}

// MemoryCache is the default in-process Cache backend: a map of entries
// per named region, all regions guarded by a single RWMutex, expiry
// checked lazily on Get.
type MemoryCache struct {
	mu      sync.RWMutex
	regions map[string]map[string]entry
}

// NewMemoryCache returns an empty in-memory Cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{regions: make(map[string]map[string]entry)}
}

func (c *MemoryCache) Get(_ context.Context, name, key string) (string, bool) {
	c.mu.RLock()
	region, ok := c.regions[name]
	if !ok {
		c.mu.RUnlock()
		metrics.CacheMisses.WithLabelValues(name).Inc()
		return "", false
	}
	e, ok := region[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		metrics.CacheMisses.WithLabelValues(name).Inc()
		return "", false
	}
	metrics.CacheHits.WithLabelValues(name).Inc()
	return e.value, true
}

func (c *MemoryCache) Set(_ context.Context, name, key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	region, ok := c.regions[name]
	if !ok {
		region = make(map[string]entry)
		c.regions[name] = region
	}
	region[key] = entry{value: value, expires: time.Now().Add(ttl)}
}

func (c *MemoryCache) Delete(_ context.Context, name, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if region, ok := c.regions[name]; ok {
		delete(region, key)
	}
}

// Close is a no-op for MemoryCache; it satisfies Cache so callers can treat
// every backend uniformly.
func (c *MemoryCache) Close() error { return nil }

// RedisCache backs Cache with a shared Redis instance, for deployments that
// run several pipeline processes against one token/show-id cache. Region
// and key are joined into a single Redis key so unrelated regions never
// collide.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an already-configured *redis.Client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func redisKey(name, key string) string {
	return "subtitles:" + name + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, name, key string) (string, bool) {
	val, err := c.client.Get(ctx, redisKey(name, key)).Result()
	if err != nil {
		metrics.CacheMisses.WithLabelValues(name).Inc()
		return "", false
	}
	metrics.CacheHits.WithLabelValues(name).Inc()
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, name, key, value string, ttl time.Duration) {
	c.client.Set(ctx, redisKey(name, key), value, ttl)
}

func (c *RedisCache) Delete(ctx context.Context, name, key string) {
	c.client.Del(ctx, redisKey(name, key))
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
