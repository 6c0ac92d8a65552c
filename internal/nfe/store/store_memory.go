package store

import (
	"context"
	"sync"
	"time"

	"frota/internal/nfe/metrics"
	"frota/pkg/domain"
	"frota/pkg/requestcontext"
)

type cachedDocument struct {
	body     []byte
	storedAt time.Time
}

// InMemoryCache keeps documents in process memory with TTL expiration.
type InMemoryCache struct {
	mu       sync.RWMutex
	docs     map[domain.AccessKey]cachedDocument
	cacheTTL time.Duration
	metrics  *metrics.Metrics
}

// NewInMemoryCache creates an in-memory cache with the given TTL.
func NewInMemoryCache(cacheTTL time.Duration, m *metrics.Metrics) *InMemoryCache {
	return &InMemoryCache{
		docs:     make(map[domain.AccessKey]cachedDocument),
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// SaveDocument stores a copy of body keyed by access key.
// An empty body is a no-op.
func (c *InMemoryCache) SaveDocument(ctx context.Context, key domain.AccessKey, body []byte) error {
	if len(body) == 0 {
		return nil
	}
	stored := make([]byte, len(body))
	copy(stored, body)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[key] = cachedDocument{body: stored, storedAt: requestcontext.Now(ctx)}
	return nil
}

// FindDocument returns the cached document body.
// Returns ErrNotFound if the entry does not exist or is older than the TTL.
func (c *InMemoryCache) FindDocument(ctx context.Context, key domain.AccessKey) ([]byte, error) {
	c.mu.RLock()
	cached, ok := c.docs[key]
	c.mu.RUnlock()

	if ok && requestcontext.Now(ctx).Sub(cached.storedAt) < c.cacheTTL {
		c.metrics.RecordCacheHit("memory")
		out := make([]byte, len(cached.body))
		copy(out, cached.body)
		return out, nil
	}
	c.metrics.RecordCacheMiss("memory")
	return nil, ErrNotFound
}

// Len returns the number of entries, expired ones included.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}
