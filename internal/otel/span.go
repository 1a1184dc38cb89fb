// Package otel provides span helpers shared by the service and the rebuild dispatcher.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on registry and rebuild spans
const (
	AttrSourceID         = attribute.Key("source.id")
	AttrSourceCount      = attribute.Key("source.count")
	AttrRebuildRequestID = attribute.Key("rebuild.request_id")
	AttrRebuildCoalesced = attribute.Key("rebuild.coalesced")
	AttrErrorKind        = attribute.Key("error.kind")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the span
// already in ctx (a no-op span when there is none)
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span, tags it with kind and marks the span as failed.
// The status description stays generic; error details go to the span event only.
func RecordError(span trace.Span, err error, kind string) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	if kind != "" {
		span.SetAttributes(AttrErrorKind.String(kind))
	}
	span.SetStatus(codes.Error, "operation failed")
}
