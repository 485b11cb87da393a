// Package otel provides an [event.Writer] that records activities as OpenTelemetry spans.
//
// An activity's start event starts a span, and its stop event ends it. Other events for a running
// activity are added to its span as span events. Events that are not associated with an activity
// are added to the span in the context passed to Write, if it is recording, or exported as
// zero-length spans otherwise.
package otel

import (
	"context"
	"sync"

	"github.com/Microsoft/go-winio/pkg/guid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	actotel "github.com/Microsoft/go-activity/internal/otel"
	"github.com/Microsoft/go-activity/pkg/event"
	"github.com/Microsoft/go-activity/pkg/failure"
)

// attribute keys
const (
	AttributeActivityID        = attribute.Key("activity.id")
	AttributeRelatedActivityID = attribute.Key("activity.related_id")
	AttributeProvider          = attribute.Key("activity.provider")
	AttributeKeyword           = attribute.Key("activity.keyword")
	AttributeLevel             = attribute.Key("activity.level")
)

type writer struct {
	tracer trace.Tracer
	level  event.Level

	// running activity spans, keyed by activity ID
	spans sync.Map
}

var _ event.Writer = (*writer)(nil)

type Option func(*writer)

// WithTracerProvider sets the provider of the tracer used to create spans.
//
// The default is the global TracerProvider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(w *writer) { w.tracer = actotel.Tracer(tp) }
}

// WithLevel sets the most verbose level that is recorded.
//
// The default is [event.LevelVerbose].
func WithLevel(l event.Level) Option {
	return func(w *writer) { w.level = l }
}

// New returns an [event.Writer] that records activities as spans.
func New(opts ...Option) event.Writer {
	w := &writer{
		level: event.LevelVerbose,
	}
	for _, o := range opts {
		o(w)
	}
	if w.tracer == nil {
		w.tracer = actotel.Tracer(nil)
	}
	return w
}

func (w *writer) Enabled(l event.Level, _ event.Keyword) bool {
	return l <= w.level
}

func (w *writer) Write(ctx context.Context, e *event.Event) error {
	switch {
	case e.ActivityID == (guid.GUID{}):
		w.standalone(ctx, e)
	case e.Opcode == event.OpcodeStart:
		w.start(ctx, e)
	case e.Opcode == event.OpcodeStop:
		w.stop(e)
	default:
		w.activityEvent(ctx, e)
	}
	return nil
}

func (w *writer) start(ctx context.Context, e *event.Event) {
	// prefer the related activity's span as the parent, falling back to any span in ctx
	if e.RelatedActivityID != (guid.GUID{}) {
		if p, ok := w.spans.Load(e.RelatedActivityID); ok {
			ctx = trace.ContextWithSpan(ctx, p.(trace.Span))
		}
	}

	attrs := make([]attribute.KeyValue, 0, len(e.Fields)+5)
	attrs = append(attrs,
		AttributeActivityID.String(e.ActivityID.String()),
		AttributeProvider.String(e.Provider),
		AttributeKeyword.String(e.Keyword.String()),
		AttributeLevel.String(e.Level.String()),
	)
	if e.RelatedActivityID != (guid.GUID{}) {
		attrs = append(attrs, AttributeRelatedActivityID.String(e.RelatedActivityID.String()))
	}
	attrs = append(attrs, attributes(e.Fields)...)

	_, span := w.tracer.Start(ctx, e.Name,
		trace.WithTimestamp(e.Time),
		trace.WithAttributes(attrs...),
	)
	w.spans.Store(e.ActivityID, span)
}

func (w *writer) stop(e *event.Event) {
	v, ok := w.spans.LoadAndDelete(e.ActivityID)
	if !ok {
		// started before this writer was created, or the start event was disabled
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attributes(e.Fields)...)
	setStatus(span, e)
	span.End(trace.WithTimestamp(e.Time))
}

func (w *writer) activityEvent(ctx context.Context, e *event.Event) {
	v, ok := w.spans.Load(e.ActivityID)
	if !ok {
		w.standalone(ctx, e)
		return
	}
	addEvent(v.(trace.Span), e)
}

func (w *writer) standalone(ctx context.Context, e *event.Event) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		addEvent(span, e)
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(e.Fields)+1)
	attrs = append(attrs, AttributeProvider.String(e.Provider))
	attrs = append(attrs, attributes(e.Fields)...)
	_, span := w.tracer.Start(ctx, e.Name,
		trace.WithTimestamp(e.Time),
		trace.WithAttributes(attrs...),
	)
	setStatus(span, e)
	span.End(trace.WithTimestamp(e.Time))
}

func addEvent(span trace.Span, e *event.Event) {
	span.AddEvent(e.Name,
		trace.WithTimestamp(e.Time),
		trace.WithAttributes(attributes(e.Fields)...),
	)
}

// setStatus sets an error status if the event carries a failed result, and an OK status otherwise.
func setStatus(span trace.Span, e *event.Event) {
	v, ok := e.Field(event.FieldCode)
	if !ok {
		return
	}
	c, ok := v.(failure.Code)
	if !ok {
		return
	}
	if c.Succeeded() {
		span.SetStatus(codes.Ok, "")
		return
	}
	desc := c.String()
	if m, ok := e.Field(event.FieldMessage); ok {
		if s, ok := m.(string); ok && s != "" {
			desc += ": " + s
		}
	}
	span.SetStatus(codes.Error, desc)
}

func attributes(fields []event.Field) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		// first definition wins
		if _, ok := seen[f.Name]; ok {
			continue
		}
		seen[f.Name] = struct{}{}
		attrs = append(attrs, actotel.Attribute(f.Name, f.Value))
	}
	return attrs
}
