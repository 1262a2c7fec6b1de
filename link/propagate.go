package link

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Propagate returns a link that writes the trace context of ctx into the
// request headers (traceparent for the W3C propagator), so the server can
// join the client's trace. A nil propagator means the global one.
//
// The headers are copied before injection; the caller's map is untouched.
func Propagate(p propagation.TextMapPropagator) Link {
	return func(ctx context.Context, op *Operation, next Handler) (*Response, error) {
		prop := p
		if prop == nil {
			prop = otel.GetTextMapPropagator()
		}

		headers := make(map[string]string, len(op.Request.Headers)+2)
		for k, v := range op.Request.Headers {
			headers[k] = v
		}
		prop.Inject(ctx, propagation.MapCarrier(headers))
		if len(headers) > 0 {
			op.Request.Headers = headers
		}
		return next(ctx, op)
	}
}
