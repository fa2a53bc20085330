package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span attribute keys.
const (
	AttrProject        = "kindhub.project"
	AttrRunID          = "run.id"
	AttrRunKind        = "run.kind"
	AttrTaskKind       = "task.kind"
	AttrExecutableKind = "executable.kind"
	AttrExecutableID   = "executable.id"
	AttrAction         = "run.action"
	AttrLocalExecution = "run.local_execution"
	AttrState          = "run.state"
	AttrFromState      = "run.state.from"

	AttrErrorMessage = "error.message"
)

// Span names.
const (
	SpanDispatchRun  = "dispatch.run"
	SpanDispatchTask = "dispatch.new_task"
	SpanRuntimeBuild = "runtime.build"
	SpanRuntimeRun   = "runtime.run"
	SpanTransition   = "dispatch.transition"
)

// Event names for span events.
const (
	EventRunBuilt      = "run.built"
	EventRunTransition = "run.transition"
	EventRunRecovered  = "run.recovered"
)

// Start opens a span on tracer. A nil tracer yields a non-recording span.
func Start(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Fail marks span as failed with message.
func Fail(span trace.Span, message string) {
	span.SetStatus(codes.Error, message)
	span.SetAttributes(attribute.String(AttrErrorMessage, message))
}

// End records err, if any, and ends the span.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		Fail(span, err.Error())
	}
	span.End()
}

// Transition adds a state transition event to span.
func Transition(span trace.Span, from, to string) {
	span.AddEvent(EventRunTransition, trace.WithAttributes(
		attribute.String(AttrFromState, from),
		attribute.String(AttrState, to),
	))
}
