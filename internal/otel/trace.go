package otel

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetSpanStatusAndEnd sets the span status from err and ends it.
func SetSpanStatusAndEnd(span trace.Span, err error, opts ...trace.SpanEndOption) {
	SetSpanStatus(span, err)
	span.End(opts...)
}

// SetSpanStatus sets the span status and records an error if err != nil.
// Sets an OK status otherwise.
func SetSpanStatus(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
