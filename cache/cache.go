package cache

import (
	"context"
	"time"
)

// Cache is a key/value store whose writers notify subscribers of the exact
// keys they changed.
//
// Set and Merge notify every listener subscribed to at least one written
// key, once per call, with the full sorted list of keys that call wrote.
// Remove and Clear do not notify.
type Cache interface {
	// Set writes one value.
	Set(ctx context.Context, key string, value any, opts ...SetOption) error

	// Merge writes several values as one batch with a single notification.
	Merge(ctx context.Context, values map[string]any, opts ...SetOption) error

	// Get returns the value under key. Absent and expired keys yield an
	// error matching zwyxerr.ErrNotFound; expired keys are evicted.
	Get(ctx context.Context, key string) (any, error)

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear deletes every key.
	Clear(ctx context.Context) error

	// All returns a snapshot of every live entry.
	All(ctx context.Context) (map[string]any, error)

	// Subscribe registers l for changes to any of keys and returns a
	// function undoing this registration.
	Subscribe(l *Listener, keys ...string) (unsubscribe func())
}

// SetOption configures a single write.
type SetOption func(*setOptions)

type setOptions struct {
	ttl time.Duration
}

// WithTTL expires the written entries ttl after the write. Zero falls back
// to the cache default; a cache default of zero never expires.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = ttl
	}
}

func resolveTTL(def time.Duration, opts []SetOption) time.Duration {
	o := setOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl > 0 {
		return o.ttl
	}
	return def
}

// Listener receives the keys changed by one write. Listeners are compared
// by pointer, so two listeners wrapping the same function are distinct.
type Listener struct {
	fn func(keys []string)
}

// NewListener wraps fn.
func NewListener(fn func(keys []string)) *Listener {
	return &Listener{fn: fn}
}

// OnChange subscribes fn to keys of c.
func OnChange(c Cache, fn func(keys []string), keys ...string) (unsubscribe func()) {
	return c.Subscribe(NewListener(fn), keys...)
}
