package basket

import (
	"context"
	"fmt"
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheKey struct {
	tree string
	req  Request
}

// Cache keeps recently fetched blobs and sends only misses to the
// underlying fetcher.  Blob data is shared between passes and must not
// be modified.
type Cache struct {
	fetcher  Fetcher
	tree     string
	lru      *lru.Cache[cacheKey, Blob]
	metrics  *Metrics
	capacity int64

	mu    sync.Mutex
	bytes int64
}

var _ Fetcher = (*Cache)(nil)

// NewCache caches blobs of the named tree up to capacity bytes of
// decompressed data, evicting the least recently used.
func NewCache(fetcher Fetcher, treeName string, capacity int64, metrics *Metrics) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive: %d", capacity)
	}
	c, err := lru.New[cacheKey, Blob](math.MaxInt32)
	if err != nil {
		return nil, err
	}
	return &Cache{fetcher: fetcher, tree: treeName, lru: c, metrics: metrics, capacity: capacity}, nil
}

func (c *Cache) Fetch(ctx context.Context, reqs []Request) ([]Blob, error) {
	blobs := make([]Blob, len(reqs))
	var missing []Request
	var slots []int
	for i, req := range reqs {
		if blob, ok := c.lru.Get(cacheKey{c.tree, req}); ok {
			blobs[i] = blob
			continue
		}
		missing = append(missing, req)
		slots = append(slots, i)
	}
	c.metrics.cache(len(reqs)-len(missing), len(missing))
	if len(missing) == 0 {
		return blobs, nil
	}
	fetched, err := c.fetcher.Fetch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missing) {
		return nil, fmt.Errorf("fetcher returned %d baskets for %d requests", len(fetched), len(missing))
	}
	for k, blob := range fetched {
		if blob.Request != missing[k] {
			return nil, fmt.Errorf("fetcher returned basket %s for request %s", blob.Request, missing[k])
		}
		c.add(blob)
		blobs[slots[k]] = blob
	}
	return blobs, nil
}

func (c *Cache) add(blob Blob) {
	size := int64(len(blob.Data))
	if size > c.capacity {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if found, _ := c.lru.ContainsOrAdd(cacheKey{c.tree, blob.Request}, blob); found {
		return
	}
	c.bytes += size
	for c.bytes > c.capacity {
		_, old, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
		c.bytes -= int64(len(old.Data))
	}
}

// Bytes is the size of the cached blob data.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Len is the number of cached blobs.
func (c *Cache) Len() int {
	return c.lru.Len()
}
