package link

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ancyrweb/zwyx/zwyxerr"
)

var errEndOfChain = errors.New("chain ended without a terminal link")

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPOption configures HTTP.
type HTTPOption func(*httpLink)

// WithDoer sets the HTTP client. Defaults to http.DefaultClient.
func WithDoer(d Doer) HTTPOption {
	return func(l *httpLink) {
		l.doer = d
	}
}

// WithHeaders sets headers sent with every request. Request headers win.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(l *httpLink) {
		for k, v := range headers {
			l.headers[k] = v
		}
	}
}

// WithHTTPLogger sets the logger. Defaults to slog.Default().
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(l *httpLink) {
		l.logger = logger
	}
}

type httpLink struct {
	doer    Doer
	headers map[string]string
	logger  *slog.Logger
}

// HTTP returns a terminal link performing the request over HTTP with JSON
// bodies. Non-2xx statuses are not errors; they are reported in Info.
func HTTP(opts ...HTTPOption) Link {
	l := &httpLink{
		doer:    http.DefaultClient,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.logger = l.logger.With("component", "http_link")

	return func(ctx context.Context, op *Operation, _ Handler) (*Response, error) {
		return l.do(ctx, op)
	}
}

func (l *httpLink) do(ctx context.Context, op *Operation) (*Response, error) {
	if op.Context == nil {
		op.Context = NewContext()
	}
	req := op.Request

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, zwyxerr.Validation("link.HTTP", fmt.Errorf("failed to encode request body: %w", err))
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.NormalizedMethod(), req.URL, body)
	if err != nil {
		return nil, zwyxerr.Validation("link.HTTP", fmt.Errorf("failed to build request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range l.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := l.doer.Do(httpReq)
	if err != nil {
		return nil, zwyxerr.Transport("link.HTTP", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			l.logger.Warn("failed to close response body", "request_id", op.Context.ID(), "error", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, zwyxerr.Transport("link.HTTP", fmt.Errorf("failed to read response body: %w", err))
	}

	out := &Response{Info: Info{Status: resp.StatusCode, Headers: resp.Header}}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out.Data); err != nil {
			return nil, zwyxerr.Transport("link.HTTP", fmt.Errorf("failed to decode response body: %w", err))
		}
	}

	l.logger.Debug("request completed",
		"request_id", op.Context.ID(),
		"method", httpReq.Method,
		"url", req.URL,
		"status", resp.StatusCode)
	return out, nil
}
