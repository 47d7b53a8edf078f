package intent

import (
	"container/list"
	"sync"
	"time"
)

type cacheEntry struct {
	query     string
	result    bool
	expiresAt time.Time
}

// lruCache is a small fixed-capacity LRU with per-entry TTL, the same shape
// as router.StickyStore generalized to carry an expiry alongside the value.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List
	items    map[string]*list.Element
}

func newLRUCache(capacity int, ttl time.Duration) *lruCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &lruCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(query string, now time.Time) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[query]
	if !ok {
		return false, false
	}
	entry := el.Value.(*cacheEntry)
	if now.After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.items, query)
		return false, false
	}
	c.order.MoveToFront(el)
	return entry.result, true
}

func (c *lruCache) set(query string, result bool, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[query]; ok {
		entry := el.Value.(*cacheEntry)
		entry.result = result
		entry.expiresAt = now.Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	entry := &cacheEntry{query: query, result: result, expiresAt: now.Add(c.ttl)}
	el := c.order.PushFront(entry)
	c.items[query] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).query)
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
