package link

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ancyrweb/zwyx/zwyxerr"
)

// Request describes one call to a REST endpoint.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    any
}

// NormalizedMethod returns the upper-cased method, GET when unset.
func (r Request) NormalizedMethod() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// Info carries transport metadata about a response.
type Info struct {
	Status  int
	Headers http.Header
}

// OK reports a 2xx status. Links that do not speak HTTP leave Status at
// zero, which also counts as OK.
func (i Info) OK() bool {
	return i.Status == 0 || (i.Status >= 200 && i.Status < 300)
}

// Response is the parsed result of a request.
type Response struct {
	// Data is the decoded JSON body: nil, map[string]any, []any or a scalar.
	Data any
	Info Info
}

// Context is a per-request bag shared by the links of one Emit call.
type Context struct {
	id     string
	mu     sync.RWMutex
	values map[string]any
}

// NewContext returns an empty Context with a fresh request id.
func NewContext() *Context {
	return &Context{id: uuid.NewString(), values: make(map[string]any)}
}

// ID returns the request id.
func (c *Context) ID() string {
	return c.id
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Set stores value under key.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Operation is what travels through the chain.
type Operation struct {
	Request Request
	Context *Context
}

// Handler produces a response for an operation.
type Handler func(ctx context.Context, op *Operation) (*Response, error)

// Link is one step of a chain. It may change the operation before calling
// next, change the response after, or answer without calling next at all.
type Link func(ctx context.Context, op *Operation, next Handler) (*Response, error)

// Chain runs links in order.
type Chain struct {
	links []Link
}

// NewChain returns a chain over links. The last link must answer without
// calling next.
func NewChain(links ...Link) (*Chain, error) {
	if len(links) == 0 {
		return nil, zwyxerr.Configuration("link.NewChain", zwyxerr.ErrEmptyChain)
	}
	out := make([]Link, len(links))
	copy(out, links)
	return &Chain{links: out}, nil
}

// Emit sends op through the chain. A nil op.Context is replaced by a new one.
func (c *Chain) Emit(ctx context.Context, op *Operation) (*Response, error) {
	if op.Context == nil {
		op.Context = NewContext()
	}
	return c.handler(0)(ctx, op)
}

func (c *Chain) handler(i int) Handler {
	if i == len(c.links) {
		return func(context.Context, *Operation) (*Response, error) {
			return nil, zwyxerr.Transport("link.Chain", errEndOfChain)
		}
	}
	return func(ctx context.Context, op *Operation) (*Response, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return c.links[i](ctx, op, c.handler(i+1))
	}
}

// Func adapts a terminal function into a Link.
func Func(fn Handler) Link {
	return func(ctx context.Context, op *Operation, _ Handler) (*Response, error) {
		return fn(ctx, op)
	}
}
