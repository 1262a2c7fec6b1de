package link

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestPropagateInjectsTraceparent(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "emit")
	defer span.End()

	var seen map[string]string
	capture := Func(func(_ context.Context, op *Operation) (*Response, error) {
		seen = op.Request.Headers
		return &Response{}, nil
	})

	chain, err := NewChain(Propagate(propagation.TraceContext{}), capture)
	require.NoError(t, err)

	original := map[string]string{"X-Api-Key": "k"}
	_, err = chain.Emit(ctx, &Operation{Request: Request{URL: "/users", Headers: original}})
	require.NoError(t, err)

	assert.Equal(t, "k", seen["X-Api-Key"])
	assert.Contains(t, seen["traceparent"], span.SpanContext().TraceID().String())
	assert.Equal(t, map[string]string{"X-Api-Key": "k"}, original)
}

func TestPropagateWithoutSpan(t *testing.T) {
	var seen map[string]string
	capture := Func(func(_ context.Context, op *Operation) (*Response, error) {
		seen = op.Request.Headers
		return &Response{}, nil
	})

	chain, err := NewChain(Propagate(propagation.TraceContext{}), capture)
	require.NoError(t, err)

	_, err = chain.Emit(context.Background(), &Operation{Request: Request{URL: "/users"}})
	require.NoError(t, err)
	assert.Nil(t, seen)
}
