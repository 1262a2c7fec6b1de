package zwyx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ancyrweb/zwyx/cache"
	"github.com/ancyrweb/zwyx/health"
	"github.com/ancyrweb/zwyx/link"
	"github.com/ancyrweb/zwyx/normalizer"
	"github.com/ancyrweb/zwyx/zwyxerr"
)

const instrumentationName = "github.com/ancyrweb/zwyx"

// Result is the outcome of Emit.
type Result struct {
	// Raw is the response body, or the response rebuilt from the cache when
	// FromCache is set.
	Raw any

	// Data is the normalized body. It is nil for empty bodies, cache hits,
	// failed statuses and clients without a normalizer.
	Data *normalizer.Normalized

	Info link.Info

	// RequestKey is the key of the stored pointer, empty if none was written.
	RequestKey string

	// Keys lists every cache key the response wrote.
	Keys []string

	// Warnings are non-fatal problems met while caching the response.
	Warnings []error

	FromCache bool

	// RequestID identifies the operation in logs and traces.
	RequestID string
}

// Client sends requests through a link chain and keeps their normalized
// responses in a cache.
type Client struct {
	chain      *link.Chain
	cache      cache.Cache
	manager    *cache.Manager
	normalizer *normalizer.Normalizer
	logger     *slog.Logger
	tracer     trace.Tracer
	requests   metric.Int64Counter
	policy     CachePolicy

	closeOnce sync.Once
	closers   []func() error
}

// New creates a client.
//
// Example:
//
//	client, err := zwyx.New(
//	    zwyx.WithSchema(defs, routes),
//	    zwyx.WithCachePolicy(zwyx.CacheFirst),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	res, err := client.Emit(ctx, link.Request{URL: "https://api.example.com/users/1"})
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(instrumentationName)
	}
	if cfg.meter == nil {
		cfg.meter = otel.Meter(instrumentationName)
	}
	if cfg.policy == "" {
		cfg.policy = NetworkOnly
	}
	if _, err := ParseCachePolicy(string(cfg.policy)); err != nil {
		return nil, err
	}

	if len(cfg.links) == 0 {
		cfg.links = []link.Link{link.HTTP(link.WithHTTPLogger(cfg.logger))}
	}
	chain, err := link.NewChain(cfg.links...)
	if err != nil {
		return nil, err
	}

	if cfg.cache == nil {
		cfg.cache = cache.NewMemoryCache()
	}

	n := cfg.normalizer
	if n == nil && cfg.definitions != nil {
		n, err = normalizer.New(cfg.definitions, cfg.routes, normalizer.WithLogger(cfg.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to build normalizer: %w", err)
		}
	}

	managerOpts := []cache.ManagerOption{
		cache.WithLogger(cfg.logger),
		cache.WithTracer(cfg.tracer),
		cache.WithMeter(cfg.meter),
	}
	if cfg.entryTTL > 0 {
		managerOpts = append(managerOpts, cache.WithEntryTTL(cfg.entryTTL))
	}
	manager, err := cache.NewManager(cfg.cache, managerOpts...)
	if err != nil {
		return nil, err
	}

	requests, err := cfg.meter.Int64Counter(
		"zwyx.client.requests",
		metric.WithDescription("Emit calls, by policy and source"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create requests counter: %w", err)
	}

	return &Client{
		chain:      chain,
		cache:      cfg.cache,
		manager:    manager,
		normalizer: n,
		logger:     cfg.logger.With("component", "client"),
		tracer:     cfg.tracer,
		requests:   requests,
		policy:     cfg.policy,
		closers:    cfg.closers,
	}, nil
}

// Emit sends req through the chain. On a 2xx response with a non-empty body
// and a configured normalizer, the body is normalized under its REST path
// (or under the URL itself when it is not an http(s) URL) and stored.
// GET requests also store a pointer that lets Read rebuild the response.
func (c *Client) Emit(ctx context.Context, req link.Request, opts ...EmitOption) (*Result, error) {
	ec := emitConfig{policy: c.policy}
	for _, opt := range opts {
		opt(&ec)
	}
	req.Method = req.NormalizedMethod()

	op := &link.Operation{Request: req, Context: link.NewContext()}
	ctx, span := c.tracer.Start(ctx, "zwyx.Emit", trace.WithAttributes(
		attribute.String("zwyx.url", req.URL),
		attribute.String("zwyx.method", req.Method),
		attribute.String("zwyx.policy", ec.policy.String()),
		attribute.String("zwyx.request_id", op.Context.ID()),
	))
	defer span.End()

	logger := c.logger.With("request_id", op.Context.ID(), "method", req.Method, "url", req.URL)

	res, err := c.emit(ctx, op, ec.policy, logger)
	if err != nil {
		if !errors.Is(err, zwyxerr.ErrNotFound) {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("policy", ec.policy.String()),
		attribute.Bool("from_cache", res.FromCache),
	))
	span.SetAttributes(
		attribute.Bool("zwyx.from_cache", res.FromCache),
		attribute.Int("zwyx.status", res.Info.Status),
	)
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func (c *Client) emit(ctx context.Context, op *link.Operation, policy CachePolicy, logger *slog.Logger) (*Result, error) {
	req := op.Request

	if policy.readsCache() {
		cacheable := req.Method == http.MethodGet && c.normalizer != nil
		if cacheable {
			data, err := c.manager.Read(ctx, req, c.normalizer.Graph())
			switch {
			case err == nil:
				logger.Debug("served from cache")
				key, _ := cache.RequestKey(req)
				return &Result{Raw: data, RequestKey: key, FromCache: true, RequestID: op.Context.ID()}, nil
			case policy == CacheOnly:
				return nil, err
			case !errors.Is(err, zwyxerr.ErrNotFound):
				logger.Warn("cache read failed, falling back to network", "error", err)
			}
		} else if policy == CacheOnly {
			return nil, zwyxerr.NotFound("Client.Emit", req.URL).
				WithContext(map[string]any{"reason": "only GET requests with a schema are served from cache"})
		}
	}

	resp, err := c.chain.Emit(ctx, op)
	if err != nil {
		logger.Error("request failed", "error", err)
		return nil, err
	}

	res := &Result{Raw: resp.Data, Info: resp.Info, RequestID: op.Context.ID()}
	switch {
	case c.normalizer == nil:
		return res, nil
	case !resp.Info.OK():
		logger.Debug("response not cached", "status", resp.Info.Status)
		return res, nil
	case isEmpty(resp.Data):
		return res, nil
	}

	identifier, ok := link.ExtractRESTPath(req.URL)
	if !ok {
		identifier = req.URL
	}
	normalized, err := c.normalizer.Normalize(identifier, resp.Data)
	if err != nil {
		logger.Error("failed to normalize response", "identifier", identifier, "error", err)
		return nil, err
	}

	stored, err := c.manager.Store(ctx, cache.StoreInput{Request: req, Normalized: normalized})
	if err != nil {
		logger.Error("failed to store response", "error", err)
		return nil, err
	}

	res.Data = normalized
	res.RequestKey = stored.RequestKey
	res.Keys = stored.Keys
	res.Warnings = stored.Warnings
	logger.Debug("response cached", "entities", normalized.EntityCount(), "keys", len(stored.Keys))
	return res, nil
}

func isEmpty(data any) bool {
	switch v := data.(type) {
	case nil:
		return true
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	return false
}

// Read rebuilds the response to req from the cache without calling the
// chain. A miss is an error matching ErrNotFound.
func (c *Client) Read(ctx context.Context, req link.Request) (any, error) {
	if c.normalizer == nil {
		return nil, zwyxerr.NotFound("Client.Read", req.URL)
	}
	return c.manager.Read(ctx, req, c.normalizer.Graph())
}

// Subscribe calls fn with the changed keys whenever a write touches any of
// keys. The returned function unsubscribes.
func (c *Client) Subscribe(fn func(keys []string), keys ...string) (unsubscribe func()) {
	return cache.OnChange(c.cache, fn, keys...)
}

// Cache returns the client's cache.
func (c *Client) Cache() cache.Cache {
	return c.cache
}

// Normalizer returns the client's normalizer, nil when none is configured.
func (c *Client) Normalizer() *normalizer.Normalizer {
	return c.normalizer
}

// Health checks the cache, and Redis when the cache is backed by it.
func (c *Client) Health(ctx context.Context) health.Status {
	checks := []health.Status{health.CacheCheck(ctx, c.cache)}
	if p, ok := c.cache.(health.Pinger); ok {
		checks = append(checks, health.RedisCheck(ctx, p))
	}
	return health.Combine(checks...)
}

// Close releases what the client created, such as Redis connections opened
// by NewFromConfig. Caches passed with WithCache are left open.
func (c *Client) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		for i := len(c.closers) - 1; i >= 0; i-- {
			if err := c.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
