package adapter

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// cacheEntry is one LRU+TTL slot.
type cacheEntry struct {
	key        string
	value      any
	insertedAt time.Time
}

// cache is a bounded LRU with TTL expiry. No LRU library appears anywhere
// in the corpus this adapter was learned from (checked: hashicorp/golang-lru
// and similarly-shaped packages are absent from every example repo's
// go.mod), so this is a deliberate stdlib-only exception — container/list
// gives the O(1) move-to-front/evict primitives an LRU needs without
// reinventing a linked list.
type cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxEntries int
	ll       *list.List
	items    map[string]*list.Element
	clock    func() time.Time
}

func newCache(maxEntries int, ttl time.Duration) *cache {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		clock:      time.Now,
	}
}

func (c *cache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.clock().Sub(entry.insertedAt) > c.ttl {
		c.ll.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.ll.MoveToFront(el)
	return entry.value, true
}

func (c *cache) put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).value = value
		el.Value.(*cacheEntry).insertedAt = c.clock()
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry{key: key, value: value, insertedAt: c.clock()})
	c.items[key] = el

	for c.ll.Len() > c.maxEntries {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

// invalidatePrefix removes every cached key matching prefix, where prefix
// may end in "*" as a wildcard (matching the catalog's InvalidatesPrefixes
// convention, e.g. "listComputers:*").
func (c *cache) invalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	trimmed := strings.TrimSuffix(prefix, "*")
	var toRemove []*list.Element
	for key, el := range c.items {
		if strings.HasPrefix(key, trimmed) {
			toRemove = append(toRemove, el)
		}
	}
	for _, el := range toRemove {
		c.ll.Remove(el)
		delete(c.items, el.Value.(*cacheEntry).key)
	}
}

func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
