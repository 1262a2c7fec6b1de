package zwyx

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/ancyrweb/zwyx/cache"
	"github.com/ancyrweb/zwyx/config"
	"github.com/ancyrweb/zwyx/link"
)

// NewFromConfig creates a client from a loaded configuration. Options are
// applied after the configuration and override it.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// resolve the logger first so the cache and link built here use it
	probe := &clientConfig{}
	for _, opt := range opts {
		opt(probe)
	}
	logger := probe.logger
	if logger == nil && cfg.Log != nil {
		logger = cfg.Log.Logger(os.Stderr)
	}

	policy, err := ParseCachePolicy(cfg.Cache.GetPolicy())
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithSchema(cfg.Entities, cfg.Routes),
		WithCachePolicy(policy),
		WithEntryTTL(cfg.Cache.GetTTL()),
	}
	if logger != nil {
		base = append(base, WithLogger(logger))
	}

	httpOpts := []link.HTTPOption{link.WithDoer(&http.Client{Timeout: cfg.HTTP.GetTimeout()})}
	if cfg.HTTP != nil && len(cfg.HTTP.Headers) > 0 {
		httpOpts = append(httpOpts, link.WithHeaders(cfg.HTTP.Headers))
	}
	if logger != nil {
		httpOpts = append(httpOpts, link.WithHTTPLogger(logger))
	}
	links := []link.Link{link.HTTP(httpOpts...)}
	if cfg.HTTP != nil && cfg.HTTP.PropagateTrace {
		links = append([]link.Link{link.Propagate(nil)}, links...)
	}
	base = append(base, WithLinks(links...))

	switch cfg.Cache.GetBackend() {
	case config.BackendNoop:
		base = append(base, WithCache(cache.NoopCache{}))
	case config.BackendRedis:
		redisOpts, err := cfg.Cache.Redis.Options(cfg.Cache.GetTTL(), logger)
		if err != nil {
			return nil, err
		}
		rc, err := cache.NewRedisCache(redisOpts)
		if err != nil {
			return nil, err
		}
		base = append(base, WithCache(rc), withCloser(rc.Close))

		if cfg.Cache.Redis.Watch {
			ctx, cancel := context.WithCancel(context.Background())
			if err := rc.Watch(ctx); err != nil {
				cancel()
				_ = rc.Close()
				return nil, err
			}
			// registered after Close, so it runs first
			base = append(base, withCloser(func() error { cancel(); return nil }))
		}
	default:
		base = append(base, WithCache(cache.NewMemoryCache(cache.WithDefaultTTL(cfg.Cache.GetTTL()))))
	}

	client, err := New(append(base, opts...)...)
	if err != nil {
		for _, opt := range base {
			cleanup := &clientConfig{}
			opt(cleanup)
			for _, fn := range cleanup.closers {
				_ = fn()
			}
		}
		return nil, err
	}
	return client, nil
}
