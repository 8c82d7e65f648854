package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrCacheMiss is returned by Get when the key is absent or expired
var ErrCacheMiss = errors.New("key not found")

// CacheService implements caching functionality
type CacheService struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
	logger     *logrus.Logger

	// In-memory fallback cache when Redis is not available
	memCache map[string]cacheItem
	memMutex sync.RWMutex

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheItem struct {
	value     string
	expiresAt time.Time
}

// NewCacheService creates a new cache service. Keys are namespaced by prefix.
func NewCacheService(client *redis.Client, prefix string, defaultTTL time.Duration, logger *logrus.Logger) *CacheService {
	return &CacheService{
		client:     client,
		prefix:     prefix,
		defaultTTL: defaultTTL,
		logger:     logger,
		memCache:   make(map[string]cacheItem),
	}
}

func (c *CacheService) key(key string) string {
	return c.prefix + key
}

func (c *CacheService) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.defaultTTL
	}
	return ttl
}

// Get retrieves a value from cache
func (c *CacheService) Get(ctx context.Context, key string) (string, error) {
	full := c.key(key)

	// Try Redis first if available
	if c.client != nil {
		val, err := c.client.Get(ctx, full).Result()
		if err == nil {
			c.hits.Add(1)
			c.logger.WithField("key", full).Debug("Cache hit (Redis)")
			return val, nil
		}
		if !errors.Is(err, redis.Nil) {
			c.logger.WithFields(logrus.Fields{
				"key":   full,
				"error": err.Error(),
			}).Warn("Redis get error, falling back to memory cache")
		}
	}

	// Fallback to memory cache
	c.memMutex.RLock()
	item, exists := c.memCache[full]
	c.memMutex.RUnlock()

	if !exists {
		c.misses.Add(1)
		return "", ErrCacheMiss
	}

	if time.Now().After(item.expiresAt) {
		c.memMutex.Lock()
		delete(c.memCache, full)
		c.memMutex.Unlock()
		c.misses.Add(1)
		return "", ErrCacheMiss
	}

	c.hits.Add(1)
	c.logger.WithField("key", full).Debug("Cache hit (memory)")
	return item.value, nil
}

// Set stores a value in cache; ttl <= 0 uses the default TTL
func (c *CacheService) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	full := c.key(key)
	ttl = c.ttl(ttl)

	if c.client != nil {
		err := c.client.Set(ctx, full, value, ttl).Err()
		if err == nil {
			c.logger.WithField("key", full).Debug("Cache set (Redis)")
			return nil
		}
		c.logger.WithFields(logrus.Fields{
			"key":   full,
			"error": err.Error(),
		}).Warn("Redis set error, falling back to memory cache")
	}

	c.memMutex.Lock()
	c.memCache[full] = cacheItem{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	c.memMutex.Unlock()

	c.logger.WithField("key", full).Debug("Cache set (memory)")
	return nil
}

// Delete removes a value from cache
func (c *CacheService) Delete(ctx context.Context, key string) error {
	full := c.key(key)
	if c.client != nil {
		if err := c.client.Del(ctx, full).Err(); err != nil {
			c.logger.WithFields(logrus.Fields{
				"key":   full,
				"error": err.Error(),
			}).Warn("Redis delete error")
		}
	}

	c.memMutex.Lock()
	delete(c.memCache, full)
	c.memMutex.Unlock()

	c.logger.WithField("key", full).Debug("Cache delete")
	return nil
}

// Clear removes every entry under the cache prefix
func (c *CacheService) Clear(ctx context.Context) error {
	if c.client != nil {
		iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			c.logger.WithField("error", err.Error()).Warn("Redis scan error")
		} else if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.WithField("error", err.Error()).Warn("Redis clear error")
			}
		}
	}

	c.memMutex.Lock()
	c.memCache = make(map[string]cacheItem)
	c.memMutex.Unlock()

	c.logger.Info("Cache cleared")
	return nil
}

// Exists checks if a key exists in cache
func (c *CacheService) Exists(ctx context.Context, key string) (bool, error) {
	full := c.key(key)
	if c.client != nil {
		count, err := c.client.Exists(ctx, full).Result()
		if err == nil && count > 0 {
			return true, nil
		}
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"key":   full,
				"error": err.Error(),
			}).Warn("Redis exists error, checking memory cache")
		}
	}

	c.memMutex.RLock()
	item, exists := c.memCache[full]
	c.memMutex.RUnlock()

	return exists && time.Now().Before(item.expiresAt), nil
}

// GetJSON decodes a cached JSON value into dst and reports whether it was found
func (c *CacheService) GetJSON(ctx context.Context, key string, dst any) bool {
	cached, err := c.Get(ctx, key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(cached), dst); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to unmarshal cached value")
		return false
	}
	return true
}

// SetJSON encodes value as JSON and caches it
func (c *CacheService) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	encoded, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to marshal cache value")
		return
	}
	if err := c.Set(ctx, key, string(encoded), ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to cache value")
	}
}

// HitStats returns cumulative hit and miss counts
func (c *CacheService) HitStats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// GetStats returns cache statistics
func (c *CacheService) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	if c.client != nil {
		size, err := c.client.DBSize(ctx).Result()
		if err == nil {
			stats["redis"] = map[string]interface{}{
				"available": true,
				"keys":      size,
			}
		} else {
			stats["redis"] = map[string]interface{}{
				"available": false,
				"error":     err.Error(),
			}
		}
	} else {
		stats["redis"] = map[string]interface{}{
			"available": false,
		}
	}

	c.memMutex.RLock()
	memSize := len(c.memCache)
	c.memMutex.RUnlock()

	stats["memory"] = map[string]interface{}{
		"size": memSize,
		"ttl":  c.defaultTTL.String(),
	}
	stats["hits"] = c.hits.Load()
	stats["misses"] = c.misses.Load()
	stats["prefix"] = c.prefix

	return stats, nil
}

// Health returns cache service health status
func (c *CacheService) Health() map[string]interface{} {
	health := make(map[string]interface{})

	if c.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := c.client.Ping(ctx).Err(); err != nil {
			health["redis"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
		} else {
			health["redis"] = map[string]interface{}{
				"status": "healthy",
			}
		}
	} else {
		health["redis"] = map[string]interface{}{
			"status": "disabled",
		}
	}

	health["memory"] = map[string]interface{}{
		"status": "healthy",
	}

	return health
}

// cleanupExpired removes expired items from memory cache
func (c *CacheService) cleanupExpired() {
	c.memMutex.Lock()
	defer c.memMutex.Unlock()

	now := time.Now()
	for key, item := range c.memCache {
		if now.After(item.expiresAt) {
			delete(c.memCache, key)
		}
	}
}

// StartCleanupRoutine periodically evicts expired memory entries until ctx is done
func (c *CacheService) StartCleanupRoutine(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.cleanupExpired()
			}
		}
	}()
}
