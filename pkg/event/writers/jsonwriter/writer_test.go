package jsonwriter

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/Microsoft/go-winio/pkg/guid"
	"github.com/google/go-cmp/cmp"

	"github.com/Microsoft/go-activity/pkg/event"
	"github.com/Microsoft/go-activity/pkg/failure"
)

func TestWriter(t *testing.T) {
	ctx := context.Background()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("create pipe failed: %v", err)
	}

	jw, err := New(w, WithLevel(event.LevelInfo))
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}

	id, err := guid.NewV4()
	if err != nil {
		t.Fatalf("new guid: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	events := []*event.Event{
		{
			Name:       "Work",
			Provider:   "Test.Provider",
			Opcode:     event.OpcodeStart,
			Level:      event.LevelInfo,
			Keyword:    0x10,
			ActivityID: id,
			Time:       now,
			Fields:     []event.Field{event.F(event.FieldThreadID, uint32(4))},
		},
		{
			Name:       "Work",
			Provider:   "Test.Provider",
			Opcode:     event.OpcodeStop,
			Level:      event.LevelInfo,
			Keyword:    0x10,
			ActivityID: id,
			Time:       now,
			Fields: []event.Field{
				event.F(event.FieldCode, failure.CodeFail),
				event.F(event.FieldMessage, "<it & broke>"),
			},
		},
	}

	go func() {
		for _, e := range events {
			if !jw.Enabled(e.Level, e.Keyword) {
				t.Errorf("event %s not enabled", e.Name)
				continue
			}
			if err := jw.Write(ctx, e); err != nil {
				t.Errorf("write: %v", err)
			}
		}
		_ = jw.Close()
	}()

	var got []Record
	d := NewDecoder(r)
	for {
		rec, err := d.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.Fatalf("decode: %v", err)
			}
			break
		}
		got = append(got, rec)
	}

	if len(got) != len(events) {
		t.Fatalf("got %d records, wanted %d", len(got), len(events))
	}

	want := Record{
		Time:       now,
		Provider:   "Test.Provider",
		Name:       "Work",
		Opcode:     "stop",
		Level:      "info",
		Keyword:    "0x0000000000000010",
		ActivityID: id.String(),
		Fields: []Field{
			{Name: event.FieldCode, Value: "0x80004005"},
			{Name: event.FieldMessage, Value: "<it & broke>"},
		},
	}
	if diff := cmp.Diff(want, got[1]); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
	if s := got[1].StringField(event.FieldCode); s != failure.CodeFail.String() {
		t.Fatalf("got code %q, wanted %q", s, failure.CodeFail.String())
	}
	// JSON numbers decode as float64
	if v, _ := got[0].Field(event.FieldThreadID); v != float64(4) {
		t.Fatalf("got thread id %v, wanted 4", v)
	}
}

func TestWriterEnabled(t *testing.T) {
	jw, err := New(io.Discard, WithLevel(event.LevelError), WithKeywords(event.KeywordTelemetry))
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}

	for _, tt := range []struct {
		l    event.Level
		k    event.Keyword
		want bool
	}{
		{event.LevelError, event.KeywordTelemetry, true},
		{event.LevelError, 0, true},
		{event.LevelError, 0x1, false},
		{event.LevelInfo, event.KeywordTelemetry, false},
		{event.LevelCritical, event.KeywordTelemetry | 0x1, true},
	} {
		if got := jw.Enabled(tt.l, tt.k); got != tt.want {
			t.Errorf("Enabled(%v, %v) = %t, wanted %t", tt.l, tt.k, got, tt.want)
		}
	}
}

func TestWriteAfterClose(t *testing.T) {
	jw, err := New(io.Discard)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if err := jw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := jw.Write(context.Background(), &event.Event{Name: "late"}); !errors.Is(err, errNilWriter) {
		t.Fatalf("got %v, wanted %v", err, errNilWriter)
	}
	if _, err := New(nil); !errors.Is(err, errNilWriter) {
		t.Fatalf("got %v, wanted %v", err, errNilWriter)
	}
}
