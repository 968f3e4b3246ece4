package fetch

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps entries in process.
type MemoryCache struct {
	store     *gocache.Cache
	retention time.Duration
}

// NewMemoryCache creates a cache that evicts entries retention after they
// stop being fresh.
func NewMemoryCache(retention time.Duration) *MemoryCache {
	return &MemoryCache{
		store:     gocache.New(gocache.NoExpiration, 10*time.Minute),
		retention: retention,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (*Entry, error) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, nil
	}
	entry, ok := v.(*Entry)
	if !ok {
		return nil, nil
	}
	return entry, nil
}

func (c *MemoryCache) Put(ctx context.Context, entry *Entry) error {
	c.store.Set(entry.Key, entry, entry.TTL+c.retention)
	return nil
}
