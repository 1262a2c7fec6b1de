package zwyx

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ancyrweb/zwyx/cache"
	"github.com/ancyrweb/zwyx/link"
	"github.com/ancyrweb/zwyx/normalizer"
	"github.com/ancyrweb/zwyx/schema"
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	logger      *slog.Logger
	tracer      trace.Tracer
	meter       metric.Meter
	links       []link.Link
	cache       cache.Cache
	normalizer  *normalizer.Normalizer
	definitions schema.Definitions
	routes      normalizer.Routes
	policy      CachePolicy
	entryTTL    time.Duration
	closers     []func() error
}

// WithLogger sets the logger used by the client and everything it creates.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer. Defaults to the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *clientConfig) {
		c.tracer = tracer
	}
}

// WithTracerProvider takes the tracer from tp, such as one built by
// telemetry.NewTracerProvider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *clientConfig) {
		c.tracer = tp.Tracer(instrumentationName)
	}
}

// WithMeterProvider takes the meter from mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *clientConfig) {
		c.meter = mp.Meter(instrumentationName)
	}
}

// WithMeter sets an OpenTelemetry meter. Defaults to the global provider.
func WithMeter(meter metric.Meter) Option {
	return func(c *clientConfig) {
		c.meter = meter
	}
}

// WithLinks sets the transport chain. The last link must be terminal.
// Defaults to a single link.HTTP().
func WithLinks(links ...link.Link) Option {
	return func(c *clientConfig) {
		c.links = links
	}
}

// WithCache sets the cache. Defaults to an in-memory cache.
func WithCache(ch cache.Cache) Option {
	return func(c *clientConfig) {
		c.cache = ch
	}
}

// WithNormalizer sets a prebuilt normalizer. It takes precedence over
// WithSchema.
func WithNormalizer(n *normalizer.Normalizer) Option {
	return func(c *clientConfig) {
		c.normalizer = n
	}
}

// WithSchema builds the normalizer from entity definitions and routes.
// Without a normalizer, responses are returned but never cached.
//
// Example:
//
//	zwyx.WithSchema(
//	    schema.Definitions{
//	        "users": {Fields: map[string]schema.Field{"photo": schema.One("photos")}},
//	    },
//	    normalizer.Routes{
//	        {Pattern: "/users/:id", Shape: normalizer.Flat("users")},
//	    },
//	)
func WithSchema(defs schema.Definitions, routes normalizer.Routes) Option {
	return func(c *clientConfig) {
		c.definitions = defs
		c.routes = routes
	}
}

// WithCachePolicy sets the default policy of Emit. Defaults to NetworkOnly.
func WithCachePolicy(p CachePolicy) Option {
	return func(c *clientConfig) {
		c.policy = p
	}
}

// WithEntryTTL sets the TTL of every key written by Emit.
func WithEntryTTL(ttl time.Duration) Option {
	return func(c *clientConfig) {
		c.entryTTL = ttl
	}
}

// withCloser registers a release function run by Client.Close.
func withCloser(fn func() error) Option {
	return func(c *clientConfig) {
		c.closers = append(c.closers, fn)
	}
}

// EmitOption configures one Emit call.
type EmitOption func(*emitConfig)

type emitConfig struct {
	policy CachePolicy
}

// WithPolicy overrides the client's cache policy for one call.
func WithPolicy(p CachePolicy) EmitOption {
	return func(c *emitConfig) {
		c.policy = p
	}
}
