// Package cache implements the fixed-capacity LRU block cache spec.md
// §4.8 describes: decoded blocks keyed by (sstable id, block offset),
// evicted by approximate byte size rather than entry count, with
// concurrent misses on the same key deduplicated via singleflight so a
// thundering herd of readers only pays for one load.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Key identifies one cached block.
type Key struct {
	FileNum uint64
	Offset  uint64
}

func (k Key) string() string { return fmt.Sprintf("%d:%d", k.FileNum, k.Offset) }

type entry struct {
	key   Key
	value interface{}
	size  int64
}

// Cache is a thread-safe, size-bounded LRU cache of decoded blocks.
type Cache struct {
	mu       sync.Mutex
	capacity int64
	used     int64
	items    map[Key]*list.Element
	order    *list.List
	group    singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// New returns an empty cache bounded to capacityBytes of cached block
// payload (approximate: only the payload size passed to Insert/Loader
// counts against it, not map/list bookkeeping overhead).
func New(capacityBytes int64) *Cache {
	return &Cache{
		capacity: capacityBytes,
		items:    make(map[Key]*list.Element),
		order:    list.New(),
	}
}

// Get returns a cached value for key, if present, marking it
// most-recently-used.
func (c *Cache) Get(key Key) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

// Insert adds or replaces the cached value for key, evicting
// least-recently-used entries as needed to stay within capacity.
func (c *Cache) Insert(key Key, value interface{}, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.used -= el.Value.(*entry).size
		c.order.Remove(el)
		delete(c.items, key)
	}
	el := c.order.PushFront(&entry{key: key, value: value, size: size})
	c.items[key] = el
	c.used += size
	c.evictLocked()
}

func (c *Cache) evictLocked() {
	for c.used > c.capacity && c.order.Len() > 0 {
		back := c.order.Back()
		e := back.Value.(*entry)
		c.used -= e.size
		c.order.Remove(back)
		delete(c.items, e.key)
	}
}

// GetOrLoad returns the cached value for key, loading and caching it
// via loader on a miss. Concurrent calls for the same key share a
// single in-flight load.
func (c *Cache) GetOrLoad(key Key, loader func() (interface{}, int64, error)) (interface{}, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(key.string(), func() (interface{}, error) {
		c.mu.Lock()
		if el, ok := c.items[key]; ok {
			c.order.MoveToFront(el)
			v := el.Value.(*entry).value
			c.mu.Unlock()
			return v, nil
		}
		c.mu.Unlock()
		value, size, err := loader()
		if err != nil {
			return nil, err
		}
		c.Insert(key, value, size)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Metrics reports cache occupancy and hit/miss counters.
type Metrics struct {
	Hits     int64
	Misses   int64
	Size     int64
	Capacity int64
	Entries  int
}

// Metrics returns a snapshot of the cache's counters.
func (c *Cache) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Metrics{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Size:     c.used,
		Capacity: c.capacity,
		Entries:  c.order.Len(),
	}
}
