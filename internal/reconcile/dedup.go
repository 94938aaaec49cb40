// Package reconcile merges pushed and polled events into client state so
// that at-least-once delivery applies each event once.
package reconcile

import (
	"container/list"
	"sync"
	"time"
)

const (
	DefaultCapacity = 1000
	DefaultTTL      = 300 * time.Second
)

// DedupCache is a bounded set of recently seen ids. Entries expire after
// the TTL whether or not they are read. Over capacity it evicts the entry
// inserted longest ago; reads never change eviction order.
type DedupCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	order    *list.List
	index    map[string]*list.Element
}

type dedupEntry struct {
	id string
	at time.Time
}

type Option func(*DedupCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *DedupCache) { c.now = now }
}

func NewDedupCache(capacity int, ttl time.Duration, opts ...Option) *DedupCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &DedupCache{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add marks id seen now. Re-adding an id refreshes it and counts as a new
// insertion, which keeps the list ordered by timestamp.
func (c *DedupCache) Add(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(id, c.now())
}

// Has reports whether id was seen within the TTL. A stale entry is
// dropped on the spot.
func (c *DedupCache) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.has(id, c.now())
}

// CheckAndAdd reports whether id was already seen and marks it seen.
func (c *DedupCache) CheckAndAdd(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if c.has(id, now) {
		return true
	}
	c.add(id, now)
	return false
}

func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *DedupCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.index = make(map[string]*list.Element)
}

func (c *DedupCache) add(id string, now time.Time) {
	if el, ok := c.index[id]; ok {
		el.Value.(*dedupEntry).at = now
		c.order.MoveToBack(el)
	} else {
		c.index[id] = c.order.PushBack(&dedupEntry{id: id, at: now})
	}

	if c.order.Len() > c.capacity {
		c.remove(c.order.Front())
	}
	if c.order.Len() > c.capacity/2 {
		c.purgeExpired(now)
	}
}

func (c *DedupCache) has(id string, now time.Time) bool {
	el, ok := c.index[id]
	if !ok {
		return false
	}
	if c.expired(el.Value.(*dedupEntry), now) {
		c.remove(el)
		return false
	}
	return true
}

func (c *DedupCache) expired(e *dedupEntry, now time.Time) bool {
	return now.Sub(e.at) > c.ttl
}

// purgeExpired walks from the oldest entry and stops at the first live one.
func (c *DedupCache) purgeExpired(now time.Time) {
	for el := c.order.Front(); el != nil; el = c.order.Front() {
		if !c.expired(el.Value.(*dedupEntry), now) {
			return
		}
		c.remove(el)
	}
}

func (c *DedupCache) remove(el *list.Element) {
	e := c.order.Remove(el).(*dedupEntry)
	delete(c.index, e.id)
}
