package work

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Option configures a Queue at construction.
type Option func(*Queue)

// Sets the name used in logs, metric labels and span attributes.
func WithName(name string) Option {
	return func(q *Queue) {
		q.name = name
	}
}

// Sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(q *Queue) {
		q.log = log
	}
}

// Enables Prometheus metrics. See NewMetrics.
func WithMetrics(m *Metrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

// Records a span for each task execution. Defaults to a no-op tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(q *Queue) {
		q.tracer = tracer
	}
}

// Sets the function called on the worker goroutine when a task fails. The
// default logs the failure. The worker carries on with the next task either
// way.
func WithFailureHandler(fn func(t *Task, err error)) Option {
	return func(q *Queue) {
		q.onFailure = fn
	}
}
