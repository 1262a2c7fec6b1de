// Package telemetry builds OpenTelemetry providers for zwyx clients.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// DefaultServiceName names the service when none is given.
const DefaultServiceName = "zwyx"

// NewTracerProvider returns a TracerProvider exporting through exporter
// with a SimpleSpanProcessor, so spans leave as soon as they end. The
// resource carries serviceName.
//
// Example:
//
//	exporter := tracetest.NewInMemoryExporter()
//	tp := telemetry.NewTracerProvider("my-app", exporter, logger)
//	defer tp.Shutdown(ctx)
//	client, err := zwyx.New(zwyx.WithTracerProvider(tp))
func NewTracerProvider(serviceName string, exporter sdktrace.SpanExporter, logger *slog.Logger) *sdktrace.TracerProvider {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	if logger == nil {
		logger = slog.Default()
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		logger.Warn("failed to create resource, using default", "error", err)
		res = resource.Default()
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exporter != nil {
		opts = append(opts, sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))
	}
	return sdktrace.NewTracerProvider(opts...)
}
