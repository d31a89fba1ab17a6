package statechart

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/anggasct/statechart"

// Span names emitted by the processor.
const (
	SpanInitialize = "statechart.initialize"
	SpanMacrostep  = "statechart.macrostep"
	SpanMicrostep  = "statechart.microstep"
	SpanDispose    = "statechart.dispose"
)

// startSpan creates a child span tagged with the processor identity.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller
func (p *Processor[ID]) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	span.SetAttributes(attribute.String("statechart.processor_id", p.id))
	span.SetAttributes(attrs...)
	return ctx, span
}

// endSpan records err, if any, and ends span
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func idAttr(key string, id any) attribute.KeyValue {
	return attribute.String(key, fmt.Sprint(id))
}
