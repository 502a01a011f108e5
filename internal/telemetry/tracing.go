// Package telemetry builds the OpenTelemetry tracer provider for the demo
// driver. Task spans themselves are recorded by the queue.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"git.sr.ht/~sircmpwn/serialwork/internal/config"
)

// Options configures NewProvider.
type Options struct {
	Service string
	Version string
	Tracing config.TracingConfig

	// Replaces the OTLP exporter, e.g. with an in-memory one in tests.
	Exporter sdktrace.SpanExporter
}

// NewProvider returns a tracer provider batching spans to the configured OTLP
// gRPC collector. The provider is not installed globally; pass its tracer to
// work.WithTracer and call Shutdown on exit to flush.
func NewProvider(ctx context.Context, opts Options) (*sdktrace.TracerProvider, error) {
	if opts.Service == "" {
		return nil, errors.New("telemetry: service name is required")
	}

	exporter := opts.Exporter
	if exporter == nil {
		if opts.Tracing.Endpoint == "" {
			return nil, errors.New("telemetry: tracing endpoint is required")
		}
		var err error
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(opts.Tracing.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("create OTLP exporter: %w", err)
		}
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(opts.Service)}
	if opts.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(opts.Version))
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
		sdktrace.WithSampler(Sampler(opts.Tracing.SampleRate)),
	), nil
}

// Sampler picks a sampler for the given rate. Rates of 1 or more sample
// everything, 0 or less nothing. Spans with a sampled parent are always kept.
func Sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}
