package monitoring

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceScope = "rowi.affinity"

	AttrSubject     = "affinity.subject"
	AttrCounterpart = "affinity.counterpart"
	AttrContext     = "affinity.context"
	AttrComposite   = "affinity.composite"
	AttrStatus      = "affinity.status"
	AttrSource      = "affinity.source"
)

// StartSpan opens a span on the global tracer provider. Without a configured
// provider the span is a no-op.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(traceScope).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records the outcome of the span and ends it.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrStatus, "error"))
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.String(AttrStatus, "success"))
	}
	span.End()
}

// PairAttributes are the common attributes of a pair-scoped span.
func PairAttributes(subject, counterpart, context string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSubject, subject),
		attribute.String(AttrCounterpart, counterpart),
		attribute.String(AttrContext, context),
	}
}
