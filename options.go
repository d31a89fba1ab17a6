package statechart

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a processor
type Option[ID comparable] func(*options[ID])

type options[ID comparable] struct {
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	observers      []Observer[ID]
}

func defaultOptions[ID comparable]() *options[ID] {
	return &options[ID]{
		logger:         slog.Default(),
		tracerProvider: otel.GetTracerProvider(),
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger[ID comparable](logger *slog.Logger) Option[ID] {
	return func(o *options[ID]) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider used for
// macrostep and microstep spans. Defaults to the global provider.
func WithTracerProvider[ID comparable](tp trace.TracerProvider) Option[ID] {
	return func(o *options[ID]) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithObserver registers an observer before initialization, so it also sees
// the initial entries.
func WithObserver[ID comparable](observer Observer[ID]) Option[ID] {
	return func(o *options[ID]) {
		if observer != nil {
			o.observers = append(o.observers, observer)
		}
	}
}
