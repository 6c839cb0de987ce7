package mcache

import (
	"context"
	"time"

	"github.com/shoalstore/shoalstore/internal/cluster"
	"github.com/shoalstore/shoalstore/internal/metrics"
)

// Cache is one of the Metadata Cache's three partitions: object
// DirEntry+attrs, user records, or bucket instances. name identifies the
// partition in cross-process InvalidationMessages ("object", "user", or
// "bucket-instance").
type Cache struct {
	name  string
	store *lru
	node  *cluster.Node // nil if no cluster invalidation fan-out is configured
}

// New creates a Cache partition named name with the given entry capacity.
func New(name string, capacity int) *Cache {
	return &Cache{name: name, store: newLRU(capacity)}
}

// SetBroadcaster wires a cluster.Node so that Put and InvalidateRemove fan
// out to peer processes. Optional: without it, the cache still works
// correctly within a single process.
func (c *Cache) SetBroadcaster(node *cluster.Node) {
	c.node = node
}

// Get returns the cached value and mtime for key, if present.
func (c *Cache) Get(key string) (value []byte, mtime time.Time, ok bool) {
	value, mtime, ok = c.store.get(key)
	if ok {
		metrics.CacheRequestsTotal.WithLabelValues(c.name, "hit").Inc()
	} else {
		metrics.CacheRequestsTotal.WithLabelValues(c.name, "miss").Inc()
	}
	return value, mtime, ok
}

// Put records value for key, overwriting any existing entry, and fans the
// update out to peer processes if a broadcaster is configured.
func (c *Cache) Put(ctx context.Context, key string, value []byte, mtime time.Time) {
	c.store.put(key, value, mtime)
	if c.node != nil {
		c.node.Broadcast(ctx, c.name, key)
	}
}

// InvalidateRemove evicts key locally and fans the eviction out to peers.
func (c *Cache) InvalidateRemove(ctx context.Context, key string) {
	c.store.remove(key)
	if c.node != nil {
		c.node.Broadcast(ctx, c.name, key)
	}
}

// SetEnabled turns caching on or off for this partition; disabling drops
// all currently cached entries.
func (c *Cache) SetEnabled(enabled bool) {
	c.store.setEnabled(enabled)
}

// Len reports the number of entries currently cached, for diagnostics and
// tests.
func (c *Cache) Len() int {
	return c.store.len()
}

// Invalidate implements cluster.InvalidationHandler: on receipt of a
// remote invalidation for this partition, the affected key is evicted
// locally. Messages for other partitions' names are ignored by whichever
// Cache they don't address (see Store.Invalidate, which dispatches by
// name).
func (c *Cache) Invalidate(ctx context.Context, msg *cluster.InvalidationMessage) (*cluster.InvalidationAck, error) {
	if msg.Cache == c.name {
		c.store.remove(msg.Key)
		metrics.CacheInvalidationsTotal.WithLabelValues(c.name).Inc()
	}
	return &cluster.InvalidationAck{}, nil
}
