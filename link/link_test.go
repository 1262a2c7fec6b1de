package link

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ancyrweb/zwyx/zwyxerr"
)

func echo(extra string) Link {
	return Func(func(_ context.Context, op *Operation) (*Response, error) {
		data := map[string]any{"url": op.Request.URL}
		if extra != "" {
			data[extra] = true
		}
		return &Response{Data: data}, nil
	})
}

func TestNewChainRequiresLinks(t *testing.T) {
	_, err := NewChain()
	require.Error(t, err)
	assert.ErrorIs(t, err, zwyxerr.ErrEmptyChain)
}

func TestChainSingleLink(t *testing.T) {
	chain, err := NewChain(echo(""))
	require.NoError(t, err)

	resp, err := chain.Emit(context.Background(), &Operation{Request: Request{URL: "/foo"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"url": "/foo"}, resp.Data)
}

func TestChainPassesThroughLinks(t *testing.T) {
	first := func(ctx context.Context, op *Operation, next Handler) (*Response, error) {
		op.Context.Set("passedByFirst", true)
		op.Request.URL += "?first=1"
		resp, err := next(ctx, op)
		if err != nil {
			return nil, err
		}
		resp.Data.(map[string]any)["passedByFirst"] = true
		return resp, nil
	}

	var sawFlag bool
	terminal := Func(func(_ context.Context, op *Operation) (*Response, error) {
		v, _ := op.Context.Get("passedByFirst")
		sawFlag, _ = v.(bool)
		return &Response{Data: map[string]any{"url": op.Request.URL, "passedBySecond": true}}, nil
	})

	chain, err := NewChain(first, terminal)
	require.NoError(t, err)

	resp, err := chain.Emit(context.Background(), &Operation{Request: Request{URL: "/foo"}})
	require.NoError(t, err)
	assert.True(t, sawFlag)
	assert.Equal(t, map[string]any{
		"url":            "/foo?first=1",
		"passedByFirst":  true,
		"passedBySecond": true,
	}, resp.Data)
}

func TestChainShortCircuit(t *testing.T) {
	called := false
	cached := func(context.Context, *Operation, Handler) (*Response, error) {
		return &Response{Data: "cached"}, nil
	}
	terminal := Func(func(context.Context, *Operation) (*Response, error) {
		called = true
		return nil, nil
	})

	chain, err := NewChain(cached, terminal)
	require.NoError(t, err)

	resp, err := chain.Emit(context.Background(), &Operation{})
	require.NoError(t, err)
	assert.Equal(t, "cached", resp.Data)
	assert.False(t, called)
}

func TestChainWithoutTerminal(t *testing.T) {
	passthrough := func(ctx context.Context, op *Operation, next Handler) (*Response, error) {
		return next(ctx, op)
	}
	chain, err := NewChain(passthrough)
	require.NoError(t, err)

	_, err = chain.Emit(context.Background(), &Operation{})
	assert.ErrorIs(t, err, zwyxerr.ErrTransport)
}

func TestChainCancelledContext(t *testing.T) {
	chain, err := NewChain(echo(""))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = chain.Emit(ctx, &Operation{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContextConcurrentAccess(t *testing.T) {
	c := NewContext()
	assert.NotEmpty(t, c.ID())
	assert.NotEqual(t, c.ID(), NewContext().ID())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set("k", i)
			_, _ = c.Get("k")
		}(i)
	}
	wg.Wait()

	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestRequestNormalizedMethod(t *testing.T) {
	assert.Equal(t, "GET", Request{}.NormalizedMethod())
	assert.Equal(t, "POST", Request{Method: "post"}.NormalizedMethod())
}

func TestInfoOK(t *testing.T) {
	assert.True(t, Info{}.OK())
	assert.True(t, Info{Status: 204}.OK())
	assert.False(t, Info{Status: 404}.OK())
}

func TestHTTPLink(t *testing.T) {
	var got struct {
		method      string
		auth        string
		contentType string
		body        map[string]any
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.auth = r.Header.Get("Authorization")
		got.contentType = r.Header.Get("Content-Type")
		if r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			if len(raw) > 0 {
				_ = json.Unmarshal(raw, &got.body)
			}
		}

		switch r.URL.Path {
		case "/users/1":
			w.Header().Set("X-Total", "1")
			_, _ = w.Write([]byte(`{"id": 1, "name": "rewieer"}`))
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		case "/broken":
			_, _ = w.Write([]byte(`{not json`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "not found"}`))
		}
	}))
	t.Cleanup(srv.Close)

	chain, err := NewChain(HTTP(
		WithDoer(srv.Client()),
		WithHeaders(map[string]string{"Authorization": "default"}),
	))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("get", func(t *testing.T) {
		resp, err := chain.Emit(ctx, &Operation{Request: Request{URL: srv.URL + "/users/1"}})
		require.NoError(t, err)
		assert.Equal(t, "GET", got.method)
		assert.Equal(t, "default", got.auth)
		assert.Equal(t, 200, resp.Info.Status)
		assert.Equal(t, "1", resp.Info.Headers.Get("X-Total"))
		assert.Equal(t, map[string]any{"id": float64(1), "name": "rewieer"}, resp.Data)
	})

	t.Run("post with body and header override", func(t *testing.T) {
		_, err := chain.Emit(ctx, &Operation{Request: Request{
			URL:     srv.URL + "/users/1",
			Method:  "post",
			Headers: map[string]string{"Authorization": "override"},
			Body:    map[string]any{"name": "x"},
		}})
		require.NoError(t, err)
		assert.Equal(t, "POST", got.method)
		assert.Equal(t, "override", got.auth)
		assert.Equal(t, "application/json", got.contentType)
		assert.Equal(t, map[string]any{"name": "x"}, got.body)
	})

	t.Run("empty body", func(t *testing.T) {
		resp, err := chain.Emit(ctx, &Operation{Request: Request{URL: srv.URL + "/empty"}})
		require.NoError(t, err)
		assert.Nil(t, resp.Data)
		assert.Equal(t, http.StatusNoContent, resp.Info.Status)
	})

	t.Run("error status is not an error", func(t *testing.T) {
		resp, err := chain.Emit(ctx, &Operation{Request: Request{URL: srv.URL + "/missing"}})
		require.NoError(t, err)
		assert.False(t, resp.Info.OK())
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := chain.Emit(ctx, &Operation{Request: Request{URL: srv.URL + "/broken"}})
		assert.ErrorIs(t, err, zwyxerr.ErrTransport)
	})
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestHTTPLinkTransportError(t *testing.T) {
	chain, err := NewChain(HTTP(WithDoer(failingDoer{})))
	require.NoError(t, err)

	_, err = chain.Emit(context.Background(), &Operation{Request: Request{URL: "http://localhost/x"}})
	require.Error(t, err)
	assert.True(t, zwyxerr.IsKind(err, zwyxerr.KindTransport))
}

func TestExtractRESTPath(t *testing.T) {
	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://someurl.co", "/", true},
		{"https://someurl.com/", "/", true},
		{"https://someurl.com/users", "/users", true},
		{"https://someurl.com/users?args=foo", "/users?args=foo", true},
		{"https://someurl.org.uk/users?args=foo", "/users?args=foo", true},
		{"https://www.someurl.org.uk/users?args=foo", "/users?args=foo", true},
		{"http://localhost:8080/users/1", "/users/1", true},
		{"users", "", false},
		{"/users/1", "", false},
		{"ftp://host/file", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, ok := ExtractRESTPath(tt.url)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
