package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ancyrweb/zwyx/zwyxerr"
)

type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.storedAt) > e.ttl
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithDefaultTTL sets the TTL of writes that do not pass WithTTL.
func WithDefaultTTL(ttl time.Duration) MemoryOption {
	return func(c *MemoryCache) {
		c.ttl = ttl
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// MemoryCache is an in-process Cache. Values are stored as given, not
// copied; callers must not mutate them after writing.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	hub     *Hub
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]entry),
		now:     time.Now,
		hub:     NewHub(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryCache) Set(ctx context.Context, key string, value any, opts ...SetOption) error {
	return c.Merge(ctx, map[string]any{key: value}, opts...)
}

func (c *MemoryCache) Merge(ctx context.Context, values map[string]any, opts ...SetOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	for k := range values {
		if k == "" {
			return zwyxerr.Validation("MemoryCache.Merge", zwyxerr.ErrInvalidKey)
		}
	}

	ttl := resolveTTL(c.ttl, opts)
	c.mu.Lock()
	now := c.now()
	for k, v := range values {
		c.entries[k] = entry{value: v, storedAt: now, ttl: ttl}
	}
	c.mu.Unlock()

	c.hub.Notify(sortedKeys(values))
	return nil
}

func (c *MemoryCache) Get(ctx context.Context, key string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, zwyxerr.NotFound("MemoryCache.Get", key)
	}

	if e.expired(c.now()) {
		c.mu.Lock()
		// re-check: a concurrent write may have refreshed the entry
		if cur, ok := c.entries[key]; ok && cur.expired(c.now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, zwyxerr.NotFound("MemoryCache.Get", key)
	}
	return e.value, nil
}

func (c *MemoryCache) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) All(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make(map[string]any, len(c.entries))
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			continue
		}
		out[k] = e.value
	}
	return out, nil
}

func (c *MemoryCache) Subscribe(l *Listener, keys ...string) func() {
	return c.hub.Subscribe(l, keys...)
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
