// Package tracing wraps node and ingest-item execution in OpenTelemetry
// spans. It stays ambient: when no TracerProvider has been configured the
// global otel tracer is a no-op, so flows and tests pay nothing for this by
// default.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/kart-io/flowagent"

// Tracer wraps a trace.Tracer with the span shapes flows and the RAG
// pipeline need. The zero value is not usable; use NewTracer.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer builds a Tracer using the global otel TracerProvider under the
// given component name. Call otel.SetTracerProvider before flow startup to
// route spans anywhere; otherwise every span is a no-op.
func NewTracer(component string) *Tracer {
	return &Tracer{tracer: otel.Tracer(instrumentationName + "/" + component)}
}

// StartNodeSpan opens a span around one node's Execute call.
func (t *Tracer) StartNodeSpan(ctx context.Context, nodeID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "node.execute", trace.WithAttributes(
		attribute.String("node.id", nodeID),
	))
}

// StartItemSpan opens a span around one ingestion item's pipeline run.
func (t *Tracer) StartItemSpan(ctx context.Context, nodeID, itemID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "ingest.item", trace.WithAttributes(
		attribute.String("node.id", nodeID),
		attribute.String("item.id", itemID),
	))
}

// StartToolSpan opens a span around one tool invocation made by the
// streaming assistant.
func (t *Tracer) StartToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "tool.call", trace.WithAttributes(
		attribute.String("tool.name", toolName),
	))
}

// StartChatSpan opens a span around one chat-model round trip.
func (t *Tracer) StartChatSpan(ctx context.Context, model string, streaming bool) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "chatmodel.call", trace.WithAttributes(
		attribute.String("chatmodel.model", model),
		attribute.Bool("chatmodel.streaming", streaming),
	))
}

// RecordError marks span as failed and attaches err, if non-nil.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// EndSpan records err (if any) on span and ends it. Intended to be deferred
// with a named error return: defer tracing.EndSpan(span, &err).
func EndSpan(span trace.Span, err *error) {
	if err != nil {
		RecordError(span, *err)
	}
	span.End()
}
