package cache

import (
	"context"
	"sync"
	"time"

	"hpackcodec/internal/logging"
)

type entry[V any] struct {
	value    V
	lastUsed time.Time
}

// Cache keeps values by key and forgets those not used for longer than the
// TTL. A zero TTL keeps everything until Delete.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
	ttl     time.Duration
	logger  logging.Logger

	now func() time.Time
}

func New[V any](ttl time.Duration, logger logging.Logger) *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]*entry[V]),
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

func (c *Cache[V]) Add(key string, value V) {
	c.mu.Lock()
	c.entries[key] = &entry[V]{value: value, lastUsed: c.now()}
	c.mu.Unlock()
}

// Get returns the value for key and marks it as used.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.expired(e) {
		var zero V
		return zero, false
	}
	e.lastUsed = c.now()
	return e.value, true
}

func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	delete(c.entries, key)
	return !c.expired(e)
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cleanup drops every expired entry and returns how many were dropped.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every half TTL until ctx is done.
func (c *Cache[V]) Run(ctx context.Context) {
	if c.ttl <= 0 {
		return
	}

	c.logger.Log(logging.LogLevelDebug, "Starting cache cleanup, ttl %s", c.ttl)
	ticker := time.NewTicker(c.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Cleanup(); n > 0 {
				c.logger.Log(logging.LogLevelInfo, "Expired %d idle entries", n)
			}
		}
	}
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return c.ttl > 0 && c.now().Sub(e.lastUsed) > c.ttl
}
