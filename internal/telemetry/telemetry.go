// Package telemetry provides the logging, tracing, and metrics abstractions
// shared by every component in the orchestration core. Components accept a
// Logger/Tracer/Metrics value at construction time rather than reaching for
// package-level globals, so a session's telemetry can be swapped out in
// tests without touching call sites.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type (
	// Logger emits structured, leveled log messages. Keyvals follow the
	// (key, value, key, value, ...) convention used throughout the codebase.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters, timers, and gauges for a component.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, duration time.Duration, tags ...string)
		RecordGauge(name string, value float64, tags ...string)
	}

	// Tracer starts and retrieves spans for the current context.
	Tracer interface {
		Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
		Span(ctx context.Context) Span
	}

	// Span is a single unit of tracing work.
	Span interface {
		End(opts ...trace.SpanEndOption)
		AddEvent(name string, attrs ...any)
		SetStatus(code codes.Code, description string)
		RecordError(err error, opts ...trace.EventOption)
	}

	// Bundle groups the three telemetry facets so constructors can accept a
	// single value instead of three separate parameters.
	Bundle struct {
		Log     Logger
		Metrics Metrics
		Tracer  Tracer
	}
)

// Noop returns a Bundle whose facets discard everything. Useful as a zero
// value for tests and for components that have not been wired to a real
// telemetry backend yet.
func Noop() Bundle {
	return Bundle{Log: NewNoopLogger(), Metrics: NewNoopMetrics(), Tracer: NewNoopTracer()}
}
