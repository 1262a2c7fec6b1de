package cache

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ancyrweb/zwyx/link"
	"github.com/ancyrweb/zwyx/normalizer"
	"github.com/ancyrweb/zwyx/zwyxerr"
)

const instrumentationName = "github.com/ancyrweb/zwyx/cache"

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithTracer sets the tracer. Defaults to the global provider's tracer.
func WithTracer(tracer trace.Tracer) ManagerOption {
	return func(m *Manager) {
		m.tracer = tracer
	}
}

// WithMeter sets the meter. Defaults to the global provider's meter.
func WithMeter(meter metric.Meter) ManagerOption {
	return func(m *Manager) {
		m.meter = meter
	}
}

// WithEntryTTL sets the TTL of every key written by Store. Zero leaves the
// cache default in place.
func WithEntryTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

type managerMetrics struct {
	entitiesWritten metric.Int64Counter
	pointersWritten metric.Int64Counter
	ambiguous       metric.Int64Counter
	reads           metric.Int64Counter
}

// Manager writes normalized responses into a Cache and reads them back.
type Manager struct {
	cache   Cache
	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter
	metrics managerMetrics
	ttl     time.Duration
}

// NewManager returns a Manager writing to c.
func NewManager(c Cache, opts ...ManagerOption) (*Manager, error) {
	if c == nil {
		return nil, zwyxerr.Configuration("cache.NewManager", fmt.Errorf("%w: nil cache", zwyxerr.ErrInvalidConfig))
	}

	m := &Manager{cache: c}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "cache_manager")
	if m.tracer == nil {
		m.tracer = otel.Tracer(instrumentationName)
	}
	if m.meter == nil {
		m.meter = otel.Meter(instrumentationName)
	}

	var err error
	m.metrics.entitiesWritten, err = m.meter.Int64Counter(
		"zwyx.cache.entities_written",
		metric.WithDescription("Entity records written to the cache"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create entities counter: %w", err)
	}
	m.metrics.pointersWritten, err = m.meter.Int64Counter(
		"zwyx.cache.pointers_written",
		metric.WithDescription("Request pointers written to the cache"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pointers counter: %w", err)
	}
	m.metrics.ambiguous, err = m.meter.Int64Counter(
		"zwyx.cache.ambiguous_pointers",
		metric.WithDescription("Singular response paths that held several entities"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ambiguity counter: %w", err)
	}
	m.metrics.reads, err = m.meter.Int64Counter(
		"zwyx.cache.reads",
		metric.WithDescription("Response reconstructions, by result"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create reads counter: %w", err)
	}

	return m, nil
}

// Cache returns the underlying cache.
func (m *Manager) Cache() Cache {
	return m.cache
}

// StoreInput is one normalized response and the request that produced it.
type StoreInput struct {
	Request    link.Request
	Normalized *normalizer.Normalized
}

// StoreResult reports what Store wrote.
type StoreResult struct {
	// RequestKey is the pointer key; empty when no pointer was written.
	RequestKey string

	// Keys lists every written key, sorted.
	Keys []string

	// Warnings holds one ErrAmbiguousSingleEntity error per singular path
	// that held several entities.
	Warnings []error
}

// Store writes every entity of in.Normalized under "<type>:<id>" and, for
// GET requests, the pointer under RequestKey(in.Request), all in one Merge.
func (m *Manager) Store(ctx context.Context, in StoreInput) (*StoreResult, error) {
	method := in.Request.NormalizedMethod()
	ctx, span := m.tracer.Start(ctx, "cache.Manager.Store", trace.WithAttributes(
		attribute.String("zwyx.method", method),
		attribute.String("zwyx.url", in.Request.URL),
	))
	defer span.End()

	if in.Normalized == nil {
		err := zwyxerr.Validation("Manager.Store", fmt.Errorf("%w: nil normalized data", zwyxerr.ErrInvalidConfig))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	n := in.Normalized
	values := make(map[string]any, n.EntityCount()+1)
	for entity, records := range n.Entities {
		for id, record := range records {
			values[normalizer.EntityKey(entity, id)] = record
		}
	}
	entities := len(values)

	result := &StoreResult{}
	if method == http.MethodGet {
		key, err := RequestKey(in.Request)
		if err != nil {
			err = zwyxerr.Internal("Manager.Store", fmt.Errorf("failed to build request key: %w", err))
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		pointer, ambiguities := BuildPointer(n)
		for _, a := range ambiguities {
			m.logger.Warn("singular route returned several entities, keeping the first",
				"request_key", key,
				"path", a.Path,
				"schema", a.Schema,
				"ids", a.IDs)
			result.Warnings = append(result.Warnings,
				zwyxerr.New("Manager.Store", zwyxerr.KindWarning, zwyxerr.ErrAmbiguousSingleEntity).
					WithContext(map[string]any{"path": a.Path, "schema": a.Schema, "ids": a.IDs}))
		}
		values[key] = pointer
		result.RequestKey = key
	}

	var opts []SetOption
	if m.ttl > 0 {
		opts = append(opts, WithTTL(m.ttl))
	}
	if err := m.cache.Merge(ctx, values, opts...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result.Keys = sortedKeys(values)
	m.metrics.entitiesWritten.Add(ctx, int64(entities))
	if result.RequestKey != "" {
		m.metrics.pointersWritten.Add(ctx, 1)
	}
	if len(result.Warnings) > 0 {
		m.metrics.ambiguous.Add(ctx, int64(len(result.Warnings)))
	}

	span.SetAttributes(
		attribute.Int("zwyx.entities", entities),
		attribute.String("zwyx.request_key", result.RequestKey),
		attribute.Int("zwyx.warnings", len(result.Warnings)),
	)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// Pointer returns the pointer stored for req.
func (m *Manager) Pointer(ctx context.Context, req link.Request) (any, error) {
	key, err := RequestKey(req)
	if err != nil {
		return nil, zwyxerr.Internal("Manager.Pointer", err)
	}
	return m.cache.Get(ctx, key)
}
