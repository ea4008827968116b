package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CallMeta describes one tool call for telemetry purposes.
type CallMeta struct {
	Tool   string // Tool name (required)
	CallID string // Call identifier from the model (optional)
	Class  string // parallel|sequential|interactive (optional)
}

// SpanName returns the deterministic span name: tool.call.<tool>.
func (m CallMeta) SpanName() string {
	return "tool.call." + m.Tool
}

func (m CallMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("tool.name", m.Tool)}
	if m.Class != "" {
		attrs = append(attrs, attribute.String("tool.class", m.Class))
	}
	return attrs
}

type callMetaKey struct{}

// WithCallMeta attaches call metadata to ctx.
func WithCallMeta(ctx context.Context, meta CallMeta) context.Context {
	return context.WithValue(ctx, callMetaKey{}, meta)
}

// CallMetaFrom extracts call metadata, falling back to the tool name.
func CallMetaFrom(ctx context.Context, toolName string) CallMeta {
	if meta, ok := ctx.Value(callMetaKey{}).(CallMeta); ok && meta.Tool == toolName {
		return meta
	}
	return CallMeta{Tool: toolName}
}

// Tracer wraps OpenTelemetry tracing with call-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)
	EndSpan(span trace.Span, failure string)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with call metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	attrs := meta.attributes()
	if meta.CallID != "" {
		attrs = append(attrs, attribute.String("tool.call_id", meta.CallID))
	}
	attrs = append(attrs, attribute.Bool("tool.error", false))

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span; a non-empty failure marks it as errored.
func (t *tracerImpl) EndSpan(span trace.Span, failure string) {
	if failure != "" {
		span.SetStatus(codes.Error, failure)
		span.SetAttributes(attribute.Bool("tool.error", true))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
