package cache

import (
	"context"
	"sync"
	"time"

	"github.com/fieldwatch/telemetry-hub/domain"
)

type cacheKey struct {
	sensorID  int
	parameter domain.Parameter
}

// MemoryCache is an in-process latest-value cache. It backs tests and
// single-instance deployments that run without a cache store. Entries are
// overwritten in call order and never evicted.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]domain.Entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: map[cacheKey]domain.Entry{},
	}
}

func (c *MemoryCache) Set(ctx context.Context, sensorID int, p domain.Parameter, value float64, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey{sensorID, p}] = domain.Entry{Value: value, Timestamp: ts}
	return nil
}

func (c *MemoryCache) Get(ctx context.Context, sensorID int, p domain.Parameter) (*domain.Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.entries[cacheKey{sensorID, p}]; ok {
		entry := e
		return &entry, nil
	}
	return nil, nil
}

func (c *MemoryCache) GetAll(ctx context.Context, sensorIDs []int, parameters []domain.Parameter) (domain.Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := domain.Snapshot{}
	for _, id := range sensorIDs {
		byParam := map[domain.Parameter]*domain.Entry{}
		for _, p := range parameters {
			if e, ok := c.entries[cacheKey{id, p}]; ok {
				entry := e
				byParam[p] = &entry
			} else {
				byParam[p] = nil
			}
		}
		snapshot[id] = byParam
	}
	return snapshot, nil
}
