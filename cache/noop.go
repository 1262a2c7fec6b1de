package cache

import (
	"context"

	"github.com/ancyrweb/zwyx/zwyxerr"
)

// NoopCache stores nothing and never notifies. Useful to run a client
// without caching.
type NoopCache struct{}

func (NoopCache) Set(context.Context, string, any, ...SetOption) error { return nil }

func (NoopCache) Merge(context.Context, map[string]any, ...SetOption) error { return nil }

func (NoopCache) Get(_ context.Context, key string) (any, error) {
	return nil, zwyxerr.NotFound("NoopCache.Get", key)
}

func (NoopCache) Remove(context.Context, string) error { return nil }

func (NoopCache) Clear(context.Context) error { return nil }

func (NoopCache) All(context.Context) (map[string]any, error) { return map[string]any{}, nil }

func (NoopCache) Subscribe(*Listener, ...string) func() { return func() {} }

var (
	_ Cache = NoopCache{}
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
