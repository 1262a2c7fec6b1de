package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ancyrweb/zwyx/link"
	"github.com/ancyrweb/zwyx/normalizer"
	"github.com/ancyrweb/zwyx/schema"
	"github.com/ancyrweb/zwyx/zwyxerr"
)

func testNormalizer(t *testing.T) *normalizer.Normalizer {
	t.Helper()
	n, err := normalizer.New(
		schema.Definitions{
			"users": {Fields: map[string]schema.Field{
				"photo":   schema.One("photos"),
				"friends": schema.Many("users"),
			}},
		},
		normalizer.Routes{
			{Pattern: "/users/:id", Shape: normalizer.Flat("users")},
			{Pattern: "/users", Shape: normalizer.FlatArray("users")},
			{Pattern: "/feed", Shape: normalizer.Nested(
				normalizer.Key("online", normalizer.FlatArray("users")),
				normalizer.Key("offline", normalizer.Nested(
					normalizer.Key("friends", normalizer.FlatArray("users")),
					normalizer.Key("captain", normalizer.Flat("users")),
				)),
			)},
		},
	)
	require.NoError(t, err)
	return n
}

func normalize(t *testing.T, n *normalizer.Normalizer, route, src string) *normalizer.Normalized {
	t.Helper()
	var data any
	require.NoError(t, json.Unmarshal([]byte(src), &data))
	out, err := n.Normalize(route, data)
	require.NoError(t, err)
	return out
}

func newTestManager(t *testing.T, c Cache, opts ...ManagerOption) *Manager {
	t.Helper()
	m, err := NewManager(c, opts...)
	require.NoError(t, err)
	return m
}

func TestRequestKey(t *testing.T) {
	tests := []struct {
		name string
		req  link.Request
		want string
	}{
		{
			name: "defaults to GET without headers",
			req:  link.Request{URL: "/users/1"},
			want: `{"url":"/users/1","method":"GET"}`,
		},
		{
			name: "headers sorted",
			req: link.Request{URL: "/users", Method: "get", Headers: map[string]string{
				"X-B": "2",
				"X-A": "1",
			}},
			want: `{"url":"/users","method":"GET","headers":{"X-A":"1","X-B":"2"}}`,
		},
		{
			name: "empty headers omitted",
			req:  link.Request{URL: "/users", Headers: map[string]string{}},
			want: `{"url":"/users","method":"GET"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RequestKey(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestManagerStoreFlatSingle(t *testing.T) {
	ctx := context.Background()
	n := testNormalizer(t)
	c := NewMemoryCache()
	m := newTestManager(t, c)

	res, err := m.Store(ctx, StoreInput{
		Request:    link.Request{URL: "/users/1"},
		Normalized: normalize(t, n, "/users/1", `{"id": 1, "name": "rewieer", "photo": {"id": 2, "url": "u"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"url":"/users/1","method":"GET"}`, res.RequestKey)
	assert.Equal(t, []string{"photos:2", "users:1", res.RequestKey}, res.Keys)
	assert.Empty(t, res.Warnings)

	user, err := c.Get(ctx, "users:1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": float64(1), "name": "rewieer", "photo": float64(2)}, user)

	pointer, err := c.Get(ctx, res.RequestKey)
	require.NoError(t, err)
	assert.Equal(t, Pointer{"$root": PointerLeaf{IDs: float64(1), Schema: "users"}}, pointer)
}

func TestManagerStoreFlatArray(t *testing.T) {
	ctx := context.Background()
	n := testNormalizer(t)
	c := NewMemoryCache()
	m := newTestManager(t, c)

	res, err := m.Store(ctx, StoreInput{
		Request:    link.Request{URL: "/users"},
		Normalized: normalize(t, n, "/users", `[{"id": 1}, {"id": 2}]`),
	})
	require.NoError(t, err)

	pointer, err := c.Get(ctx, res.RequestKey)
	require.NoError(t, err)
	assert.Equal(t, Pointer{"$root": PointerLeaf{IDs: []any{float64(1), float64(2)}, Schema: "users"}}, pointer)

	res, err = m.Store(ctx, StoreInput{
		Request:    link.Request{URL: "/users?page=9"},
		Normalized: normalize(t, n, "/users?page=9", `[]`),
	})
	require.NoError(t, err)
	pointer, err = c.Get(ctx, res.RequestKey)
	require.NoError(t, err)
	assert.Equal(t, Pointer{"$root": PointerLeaf{IDs: []any{}, Schema: "users"}}, pointer)
}

func TestManagerStoreNested(t *testing.T) {
	ctx := context.Background()
	n := testNormalizer(t)
	c := NewMemoryCache()
	m := newTestManager(t, c)

	res, err := m.Store(ctx, StoreInput{
		Request: link.Request{URL: "/feed"},
		Normalized: normalize(t, n, "/feed", `{
			"online": [{"id": 1}],
			"offline": {"friends": null, "captain": {"id": 4}}
		}`),
	})
	require.NoError(t, err)

	pointer, err := c.Get(ctx, res.RequestKey)
	require.NoError(t, err)
	assert.Equal(t, Pointer{
		"online": PointerLeaf{IDs: []any{float64(1)}, Schema: "users"},
		"offline": map[string]any{
			"friends": PointerLeaf{IDs: nil, Schema: "users"},
			"captain": PointerLeaf{IDs: float64(4), Schema: "users"},
		},
	}, pointer)
}

func TestManagerStoreNullRoot(t *testing.T) {
	ctx := context.Background()
	n := testNormalizer(t)
	c := NewMemoryCache()
	m := newTestManager(t, c)

	res, err := m.Store(ctx, StoreInput{
		Request:    link.Request{URL: "/users/404"},
		Normalized: normalize(t, n, "/users/404", `null`),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{res.RequestKey}, res.Keys)

	pointer, err := c.Get(ctx, res.RequestKey)
	require.NoError(t, err)
	assert.Equal(t, Pointer{"$root": PointerLeaf{Schema: "users"}}, pointer)
}

func TestManagerStoreAmbiguousSingleEntity(t *testing.T) {
	ctx := context.Background()
	n := testNormalizer(t)
	c := NewMemoryCache()

	var logs bytes.Buffer
	m := newTestManager(t, c, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	res, err := m.Store(ctx, StoreInput{
		Request:    link.Request{URL: "/users/1"},
		Normalized: normalize(t, n, "/users/1", `{"id": 1, "friends": [{"id": 2}, {"id": 3}]}`),
	})
	require.NoError(t, err)

	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], zwyxerr.ErrAmbiguousSingleEntity)
	assert.True(t, zwyxerr.IsKind(res.Warnings[0], zwyxerr.KindWarning))
	assert.Contains(t, logs.String(), "level=WARN")

	pointer, err := c.Get(ctx, res.RequestKey)
	require.NoError(t, err)
	assert.Equal(t, Pointer{"$root": PointerLeaf{IDs: float64(1), Schema: "users"}}, pointer)

	// every entity is still cached
	for _, key := range []string{"users:1", "users:2", "users:3"} {
		_, err := c.Get(ctx, key)
		assert.NoError(t, err, key)
	}
}

func TestManagerStoreNonGet(t *testing.T) {
	ctx := context.Background()
	n := testNormalizer(t)
	c := NewMemoryCache()
	m := newTestManager(t, c)

	res, err := m.Store(ctx, StoreInput{
		Request:    link.Request{URL: "/users/1", Method: "POST"},
		Normalized: normalize(t, n, "/users/1", `{"id": 1}`),
	})
	require.NoError(t, err)
	assert.Empty(t, res.RequestKey)
	assert.Equal(t, []string{"users:1"}, res.Keys)
	assert.Equal(t, 1, c.Len())
}

func TestManagerStoreNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	n := testNormalizer(t)
	c := NewMemoryCache()
	m := newTestManager(t, c)
	rec := &recorder{}

	c.Subscribe(rec.listener(), "users:1", "photos:2")
	res, err := m.Store(ctx, StoreInput{
		Request:    link.Request{URL: "/users/1"},
		Normalized: normalize(t, n, "/users/1", `{"id": 1, "photo": {"id": 2}}`),
	})
	require.NoError(t, err)

	require.Len(t, rec.Calls(), 1)
	assert.Equal(t, res.Keys, rec.Calls()[0])
}

func TestManagerStoreErrors(t *testing.T) {
	m := newTestManager(t, NewMemoryCache())
	_, err := m.Store(context.Background(), StoreInput{Request: link.Request{URL: "/x"}})
	assert.True(t, zwyxerr.IsKind(err, zwyxerr.KindValidation))

	_, err = NewManager(nil)
	assert.ErrorIs(t, err, zwyxerr.ErrInvalidConfig)
}

type failingCache struct{ NoopCache }

func (failingCache) Merge(context.Context, map[string]any, ...SetOption) error {
	return errors.New("disk full")
}

func TestManagerStoreSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	n := testNormalizer(t)
	ok := newTestManager(t, NewMemoryCache(), WithTracer(tp.Tracer("test")))
	_, err := ok.Store(context.Background(), StoreInput{
		Request:    link.Request{URL: "/users/1"},
		Normalized: normalize(t, n, "/users/1", `{"id": 1}`),
	})
	require.NoError(t, err)

	failing := newTestManager(t, failingCache{}, WithTracer(tp.Tracer("test")))
	_, err = failing.Store(context.Background(), StoreInput{
		Request:    link.Request{URL: "/users/1"},
		Normalized: normalize(t, n, "/users/1", `{"id": 1}`),
	})
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "cache.Manager.Store", spans[0].Name())
	assert.Equal(t, "Ok", spans[0].Status().Code.String())
	assert.Equal(t, "Error", spans[1].Status().Code.String())
}

func TestManagerEntryTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryCache(WithClock(clock.Now))
	m := newTestManager(t, c, WithEntryTTL(time.Minute))

	_, err := m.Store(ctx, StoreInput{
		Request:    link.Request{URL: "/users/1"},
		Normalized: normalize(t, testNormalizer(t), "/users/1", `{"id": 1}`),
	})
	require.NoError(t, err)

	clock.Advance(time.Minute + time.Second)
	_, err = c.Get(ctx, "users:1")
	assert.ErrorIs(t, err, zwyxerr.ErrNotFound)
}
