// Package telemetry installs the OpenTelemetry tracer provider used by the
// library spans.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Shutdown flushes and stops the tracer provider.
type Shutdown func(context.Context) error

// Options describes the collector and the service reported in every span.
type Options struct {
	Endpoint string
	// Insecure disables TLS on the gRPC connection to the collector.
	Insecure bool
	Service  string
	Version  string
}

// Setup exports spans to the OTLP gRPC collector at opts.Endpoint. An empty
// endpoint leaves the global no-op provider in place.
func Setup(ctx context.Context, opts Options) (Shutdown, error) {
	if opts.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(opts.Service),
			semconv.ServiceVersionKey.String(opts.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx, exporterOptions(opts)...)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return provider.Shutdown, nil
}

func exporterOptions(opts Options) []otlptracegrpc.Option {
	out := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		out = append(out, otlptracegrpc.WithInsecure())
	}
	return out
}
