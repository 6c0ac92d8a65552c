package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"frota/internal/nfe/metrics"
	"frota/pkg/domain"
)

const documentKeyPrefix = "nfe:xml:"

// RedisCache stores documents in Redis with a per-key TTL, so several report
// runs on different hosts share one cache.
type RedisCache struct {
	client   *redis.Client
	cacheTTL time.Duration
	metrics  *metrics.Metrics
}

// NewRedisCache constructs a Redis-backed document cache.
func NewRedisCache(client *redis.Client, cacheTTL time.Duration, m *metrics.Metrics) *RedisCache {
	return &RedisCache{
		client:   client,
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// SaveDocument stores body with SET ... EX so expiry is handled by Redis.
func (c *RedisCache) SaveDocument(ctx context.Context, key domain.AccessKey, body []byte) error {
	if len(body) == 0 {
		return nil
	}
	if err := c.client.Set(ctx, documentKeyPrefix+key.String(), body, c.cacheTTL).Err(); err != nil {
		return fmt.Errorf("save document cache: %w", err)
	}
	return nil
}

// FindDocument returns the cached body or ErrNotFound.
func (c *RedisCache) FindDocument(ctx context.Context, key domain.AccessKey) ([]byte, error) {
	body, err := c.client.Get(ctx, documentKeyPrefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.RecordCacheMiss("redis")
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document cache: %w", err)
	}
	c.metrics.RecordCacheHit("redis")
	return body, nil
}
