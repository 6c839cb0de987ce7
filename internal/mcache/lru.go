// Package mcache implements the Metadata Cache (C3): a small, advisory,
// read-through LRU in front of the Index Gateway, covering object
// DirEntry+attrs payloads, user records, and bucket instances (spec §4.3).
package mcache

import (
	"container/list"
	"sync"
	"time"
)

// entry is one cached (key, value, mtime) triple plus its position in the
// LRU list.
type entry struct {
	key   string
	value []byte
	mtime time.Time
	elem  *list.Element
}

// lru is a fixed-capacity, mutex-guarded LRU keyed by string, storing raw
// byte payloads plus an mtime. Grounded on the container/list-backed
// eviction structure of storj-storj's shared/lrucache.ExpiringLRU, trimmed
// to a plain get/put/remove shape (no per-key load deduplication, since the
// Metadata Cache is advisory and population always follows an explicit
// Index Gateway read the caller already performed).
type lru struct {
	mu       sync.Mutex
	capacity int
	enabled  bool
	data     map[string]*entry
	order    *list.List
}

func newLRU(capacity int) *lru {
	return &lru{
		capacity: capacity,
		enabled:  true,
		data:     make(map[string]*entry, capacity),
		order:    list.New(),
	}
}

func (c *lru) get(key string) ([]byte, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return nil, time.Time{}, false
	}
	e, ok := c.data[key]
	if !ok {
		return nil, time.Time{}, false
	}
	c.order.MoveToFront(e.elem)
	return append([]byte{}, e.value...), e.mtime, true
}

func (c *lru) put(key string, value []byte, mtime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled || c.capacity <= 0 {
		return
	}

	if e, ok := c.data[key]; ok {
		e.value = append([]byte{}, value...)
		e.mtime = mtime
		c.order.MoveToFront(e.elem)
		return
	}

	for len(c.data) >= c.capacity {
		back := c.order.Back()
		if back == nil {
			break
		}
		delete(c.data, back.Value.(string))
		c.order.Remove(back)
	}

	e := &entry{key: key, value: append([]byte{}, value...), mtime: mtime}
	e.elem = c.order.PushFront(key)
	c.data[key] = e
}

func (c *lru) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return
	}
	delete(c.data, key)
	c.order.Remove(e.elem)
}

func (c *lru) setEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if !enabled {
		c.data = make(map[string]*entry, c.capacity)
		c.order = list.New()
	}
}

func (c *lru) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
