package otel

import (
	"context"
	"testing"
	"time"

	"github.com/Microsoft/go-winio/pkg/guid"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Microsoft/go-activity/pkg/event"
	"github.com/Microsoft/go-activity/pkg/failure"
)

func newTestWriter(t *testing.T) (event.Writer, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return New(WithTracerProvider(tp)), sr
}

func newGUID(t *testing.T) guid.GUID {
	t.Helper()
	g, err := guid.NewV4()
	if err != nil {
		t.Fatalf("new guid: %v", err)
	}
	return g
}

func write(t *testing.T, w event.Writer, e *event.Event) {
	t.Helper()
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if err := w.Write(context.Background(), e); err != nil {
		t.Fatalf("write %s: %v", e.Name, err)
	}
}

func TestActivitySpan(t *testing.T) {
	w, sr := newTestWriter(t)
	id := newGUID(t)

	write(t, w, &event.Event{Name: "Work", Opcode: event.OpcodeStart, ActivityID: id})
	write(t, w, &event.Event{Name: event.NameActivityError, ActivityID: id,
		Fields: []event.Field{event.F(event.FieldCode, failure.CodeFail)}})
	if n := len(sr.Ended()); n != 0 {
		t.Fatalf("got %d ended spans before stop, wanted 0", n)
	}
	write(t, w, &event.Event{Name: "Work", Opcode: event.OpcodeStop, ActivityID: id,
		Fields: []event.Field{
			event.F(event.FieldCode, failure.CodeFail),
			event.F(event.FieldMessage, "broken"),
		}})

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, wanted 1", len(spans))
	}
	s := spans[0]
	if s.Name() != "Work" {
		t.Fatalf("got span name %q, wanted %q", s.Name(), "Work")
	}
	if st := s.Status(); st.Code != codes.Error {
		t.Fatalf("got status %v, wanted %v", st.Code, codes.Error)
	}
	if es := s.Events(); len(es) != 1 || es[0].Name != event.NameActivityError {
		t.Fatalf("got span events %+v, wanted one %s", es, event.NameActivityError)
	}
}

func TestRelatedActivityParent(t *testing.T) {
	w, sr := newTestWriter(t)
	parent, child := newGUID(t), newGUID(t)

	write(t, w, &event.Event{Name: "Parent", Opcode: event.OpcodeStart, ActivityID: parent})
	write(t, w, &event.Event{Name: "Child", Opcode: event.OpcodeStart, ActivityID: child, RelatedActivityID: parent})
	write(t, w, &event.Event{Name: "Child", Opcode: event.OpcodeStop, ActivityID: child,
		Fields: []event.Field{event.F(event.FieldCode, failure.OK)}})
	write(t, w, &event.Event{Name: "Parent", Opcode: event.OpcodeStop, ActivityID: parent,
		Fields: []event.Field{event.F(event.FieldCode, failure.OK)}})

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, wanted 2", len(spans))
	}
	c, p := spans[0], spans[1]
	if c.Parent().SpanID() != p.SpanContext().SpanID() {
		t.Fatalf("child parent is %v, wanted %v", c.Parent().SpanID(), p.SpanContext().SpanID())
	}
	if c.Status().Code != codes.Ok {
		t.Fatalf("got status %v, wanted %v", c.Status().Code, codes.Ok)
	}
}

func TestStandaloneEvent(t *testing.T) {
	w, sr := newTestWriter(t)

	write(t, w, &event.Event{Name: event.NameFallbackError,
		Fields: []event.Field{event.F(event.FieldCode, failure.CodeAccessDenied)}})

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, wanted 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("got status %v, wanted %v", spans[0].Status().Code, codes.Error)
	}
}

func TestStopWithoutStart(t *testing.T) {
	w, sr := newTestWriter(t)
	write(t, w, &event.Event{Name: "Orphan", Opcode: event.OpcodeStop, ActivityID: newGUID(t)})
	if n := len(sr.Ended()); n != 0 {
		t.Fatalf("got %d spans, wanted 0", n)
	}
}

func TestEnabled(t *testing.T) {
	w := New(WithLevel(event.LevelWarning))
	if !w.Enabled(event.LevelError, 0) {
		t.Fatal("errors should be enabled")
	}
	if w.Enabled(event.LevelVerbose, 0) {
		t.Fatal("verbose should be disabled")
	}
}
