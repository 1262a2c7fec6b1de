package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ancyrweb/zwyx/link"
	"github.com/ancyrweb/zwyx/normalizer"
	"github.com/ancyrweb/zwyx/schema"
	"github.com/ancyrweb/zwyx/zwyxerr"
)

func storeResponse(t *testing.T, m *Manager, n *normalizer.Normalizer, url, body string) {
	t.Helper()
	_, err := m.Store(context.Background(), StoreInput{
		Request:    link.Request{URL: url},
		Normalized: normalize(t, n, url, body),
	})
	require.NoError(t, err)
}

func TestManagerReadFlat(t *testing.T) {
	ctx := context.Background()
	n := testNormalizer(t)
	m := newTestManager(t, NewMemoryCache())

	storeResponse(t, m, n, "/users/1", `{"id": 1, "name": "rewieer", "photo": {"id": 2, "url": "u"}}`)

	got, err := m.Read(ctx, link.Request{URL: "/users/1"}, n.Graph())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id":    float64(1),
		"name":  "rewieer",
		"photo": map[string]any{"id": float64(2), "url": "u"},
	}, got)
}

func TestManagerReadArray(t *testing.T) {
	ctx := context.Background()
	n := testNormalizer(t)
	m := newTestManager(t, NewMemoryCache())

	storeResponse(t, m, n, "/users", `[{"id": 2}, {"id": 1}]`)
	storeResponse(t, m, n, "/users?page=2", `[]`)

	got, err := m.Read(ctx, link.Request{URL: "/users"}, n.Graph())
	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"id": float64(2)},
		map[string]any{"id": float64(1)},
	}, got)

	got, err = m.Read(ctx, link.Request{URL: "/users?page=2"}, n.Graph())
	require.NoError(t, err)
	assert.Equal(t, []any{}, got)
}

func TestManagerReadNested(t *testing.T) {
	ctx := context.Background()
	n := testNormalizer(t)
	m := newTestManager(t, NewMemoryCache())

	storeResponse(t, m, n, "/feed", `{
		"online": [{"id": 1}],
		"offline": {"friends": null, "captain": {"id": 4, "photo": {"id": 9}}}
	}`)

	got, err := m.Read(ctx, link.Request{URL: "/feed"}, n.Graph())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"online": []any{map[string]any{"id": float64(1)}},
		"offline": map[string]any{
			"friends": nil,
			"captain": map[string]any{"id": float64(4), "photo": map[string]any{"id": float64(9)}},
		},
	}, got)
}

func TestManagerReadSeesLaterWrites(t *testing.T) {
	ctx := context.Background()
	n := testNormalizer(t)
	m := newTestManager(t, NewMemoryCache())

	storeResponse(t, m, n, "/users", `[{"id": 1, "name": "old"}]`)
	storeResponse(t, m, n, "/users/1", `{"id": 1, "name": "new"}`)

	got, err := m.Read(ctx, link.Request{URL: "/users"}, n.Graph())
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": float64(1), "name": "new"}}, got)
}

func TestManagerReadCycle(t *testing.T) {
	ctx := context.Background()
	n := testNormalizer(t)
	m := newTestManager(t, NewMemoryCache())

	storeResponse(t, m, n, "/users/1", `{"id": 1, "friends": [{"id": 2, "friends": [{"id": 1}]}]}`)

	// the ambiguous root keeps user 1
	got, err := m.Read(ctx, link.Request{URL: "/users/1"}, n.Graph())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id": float64(1),
		"friends": []any{
			map[string]any{"id": float64(2), "friends": []any{float64(1)}},
		},
	}, got)
}

func TestManagerReadMissing(t *testing.T) {
	ctx := context.Background()
	n := testNormalizer(t)
	c := NewMemoryCache()
	m := newTestManager(t, c)

	_, err := m.Read(ctx, link.Request{URL: "/users/1"}, n.Graph())
	assert.ErrorIs(t, err, zwyxerr.ErrNotFound)

	storeResponse(t, m, n, "/users/1", `{"id": 1, "photo": {"id": 2}}`)

	require.NoError(t, c.Remove(ctx, "photos:2"))
	got, err := m.Read(ctx, link.Request{URL: "/users/1"}, n.Graph())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": float64(1), "photo": float64(2)}, got)

	require.NoError(t, c.Remove(ctx, "users:1"))
	_, err = m.Read(ctx, link.Request{URL: "/users/1"}, n.Graph())
	assert.ErrorIs(t, err, zwyxerr.ErrNotFound)
}

func TestManagerReadUnknownSchema(t *testing.T) {
	ctx := context.Background()
	n := testNormalizer(t)
	m := newTestManager(t, NewMemoryCache())
	storeResponse(t, m, n, "/users/1", `{"id": 1}`)

	other, err := schema.Build(schema.Definitions{"posts": {}})
	require.NoError(t, err)

	_, err = m.Read(ctx, link.Request{URL: "/users/1"}, other)
	assert.ErrorIs(t, err, zwyxerr.ErrUnknownEntity)
}

func TestManagerReadThroughRedis(t *testing.T) {
	for _, codec := range []Codec{JSONCodec{}, MsgpackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			ctx := context.Background()
			c, _ := setupTestRedis(t, RedisOptions{Codec: codec})
			n := testNormalizer(t)
			m := newTestManager(t, c)

			storeResponse(t, m, n, "/feed", `{
				"online": [{"id": 1, "name": "rewieer"}],
				"offline": {"friends": [], "captain": null}
			}`)

			got, err := m.Read(ctx, link.Request{URL: "/feed"}, n.Graph())
			require.NoError(t, err)
			assert.Equal(t, map[string]any{
				"online": []any{map[string]any{"id": float64(1), "name": "rewieer"}},
				"offline": map[string]any{
					"friends": []any{},
					"captain": nil,
				},
			}, got)
		})
	}
}
