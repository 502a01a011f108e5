package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"git.sr.ht/~sircmpwn/serialwork/internal/config"
)

func TestSampler(t *testing.T) {
	t.Parallel()

	assert.Equal(t, sdktrace.AlwaysSample().Description(), Sampler(1).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), Sampler(3).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), Sampler(0).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), Sampler(-1).Description())
	assert.Contains(t, Sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestNewProvider(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	exp := tracetest.NewInMemoryExporter()
	tp, err := NewProvider(ctx, Options{
		Service:  "workdemo-test",
		Version:  "v1",
		Tracing:  config.TracingConfig{SampleRate: 1},
		Exporter: exp,
	})
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(ctx, "step")
	span.End()
	require.NoError(t, tp.ForceFlush(ctx))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "step", spans[0].Name)
	attrs := spans[0].Resource.Attributes()
	assert.Contains(t, attrs, semconv.ServiceName("workdemo-test"))
	assert.Contains(t, attrs, semconv.ServiceVersion("v1"))

	require.NoError(t, tp.Shutdown(ctx))
}

func TestNewProviderNeverSample(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	exp := tracetest.NewInMemoryExporter()
	tp, err := NewProvider(ctx, Options{Service: "s", Exporter: exp})
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(ctx, "dropped")
	assert.False(t, span.SpanContext().IsSampled())
	span.End()
	require.NoError(t, tp.ForceFlush(ctx))
	assert.Empty(t, exp.GetSpans())
	require.NoError(t, tp.Shutdown(ctx))
}

func TestNewProviderErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := NewProvider(ctx, Options{Tracing: config.TracingConfig{Endpoint: "localhost:4317"}})
	assert.ErrorContains(t, err, "service name is required")

	_, err = NewProvider(ctx, Options{Service: "s"})
	assert.ErrorContains(t, err, "tracing endpoint is required")
}

func TestNewProviderOTLP(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// The gRPC exporter connects lazily, so no collector is needed here.
	tp, err := NewProvider(ctx, Options{
		Service: "s",
		Tracing: config.TracingConfig{Endpoint: "localhost:4317", SampleRate: 1},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(ctx)
	cancel()
	// Nothing was recorded; a cancelled context only bounds the wait.
	_ = tp.Shutdown(ctx)
}
