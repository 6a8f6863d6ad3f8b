package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const DefaultMemoryEntries = 64

// Memory is an in-process LRU cache with per-entry expiry. It keeps values
// between scheduled runs of a long-lived process when memcached is not set up.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
	now        func() time.Time
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryEntries
	}

	return &Memory{
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}

	entry := elem.Value.(*memoryEntry) //nolint:forcetypeassert // Only memoryEntry is stored

	if !c.now().Before(entry.expiresAt) {
		c.removeElement(elem)

		return nil, false, nil
	}

	c.order.MoveToFront(elem)

	return entry.value, true, nil
}

// Set ignores empty keys and non-positive TTLs.
func (c *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if key == "" || ttl <= 0 {
		return nil
	}

	now := c.now()
	expiresAt := now.Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*memoryEntry) //nolint:forcetypeassert // Only memoryEntry is stored
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)

		return nil
	}

	c.entries[key] = c.order.PushFront(&memoryEntry{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	})

	c.evictExpiredLocked(now)
	c.enforceSizeLimitLocked()

	return nil
}

func (c *Memory) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()

		if entry := elem.Value.(*memoryEntry); !now.Before(entry.expiresAt) { //nolint:forcetypeassert // Only memoryEntry is stored
			c.removeElement(elem)
		}

		elem = prev
	}
}

func (c *Memory) enforceSizeLimitLocked() {
	for len(c.entries) > c.maxEntries {
		elem := c.order.Back()
		if elem == nil {
			return
		}

		c.removeElement(elem)
	}
}

func (c *Memory) removeElement(elem *list.Element) {
	entry := elem.Value.(*memoryEntry) //nolint:forcetypeassert // Only memoryEntry is stored

	delete(c.entries, entry.key)
	c.order.Remove(elem)
}
