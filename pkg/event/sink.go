package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Microsoft/go-winio/pkg/guid"

	"github.com/Microsoft/go-activity/internal/tid"
	"github.com/Microsoft/go-activity/pkg/callctx"
	"github.com/Microsoft/go-activity/pkg/failure"
)

// Sink builds the activity and failure events for a provider and writes them to a [Writer].
//
// Each method first checks if the event is enabled, so payloads are only built for events that
// will be written. Write errors are sent to the handler set with [SetErrorHandler].
type Sink struct {
	provider string
	w        Writer
	closed   atomic.Bool
}

// NewSink returns a Sink for the named provider.
func NewSink(provider string, w Writer) (*Sink, error) {
	if w == nil {
		return nil, ErrNoWriter
	}
	return &Sink{provider: provider, w: w}, nil
}

func (s *Sink) Provider() string { return s.provider }

func (s *Sink) Writer() Writer { return s.w }

// Enabled returns true if events with the given level and keyword are written.
func (s *Sink) Enabled(l Level, k Keyword) bool {
	return !s.closed.Load() && s.w.Enabled(l, k)
}

// Close disables every event. It does not close the writer.
func (s *Sink) Close() {
	s.closed.Store(true)
}

// Start emits the start event for an activity.
func (s *Sink) Start(ctx context.Context, d Descriptor, id, related guid.GUID, fields ...Field) {
	if !s.Enabled(d.Level, d.Keyword) {
		return
	}
	fs := make([]Field, 0, len(fields)+1)
	fs = append(fs, F(FieldThreadID, tid.Current()))
	fs = append(fs, fields...)
	s.write(ctx, &Event{
		Name:              d.Name,
		Opcode:            OpcodeStart,
		Keyword:           d.Keyword,
		Level:             d.Level,
		ActivityID:        id,
		RelatedActivityID: related,
		Fields:            fs,
	})
}

// Stop emits the terminal event for an activity.
//
// If f is non-nil, the failure fields are included after the result.
func (s *Sink) Stop(ctx context.Context, d Descriptor, id, related guid.GUID, result failure.Code, f *failure.Failure, fields ...Field) {
	if !s.Enabled(d.Level, d.Keyword) {
		return
	}
	fs := make([]Field, 0, len(fields)+16)
	fs = append(fs,
		F(FieldCode, result),
		F(FieldThreadID, tid.Current()),
	)
	if f != nil {
		fs = append(fs, failureFields(f)...)
	}
	fs = append(fs, fields...)
	s.write(ctx, &Event{
		Name:              d.Name,
		Opcode:            OpcodeStop,
		Keyword:           d.Keyword,
		Level:             d.Level,
		ActivityID:        id,
		RelatedActivityID: related,
		Fields:            fs,
	})
}

// IntermediateStop emits the event for a stop that did not finish a split activity.
func (s *Sink) IntermediateStop(ctx context.Context, d Descriptor, id guid.GUID, code failure.Code) {
	if !s.Enabled(d.Level, d.Keyword) {
		return
	}
	s.write(ctx, &Event{
		Name:       NameActivityIntermediateStop,
		Keyword:    d.Keyword,
		Level:      d.Level,
		ActivityID: id,
		Fields: []Field{
			F(FieldCode, code),
			F(FieldThreadID, tid.Current()),
		},
	})
}

// Continue emits the event for an activity continuing on a new goroutine.
func (s *Sink) Continue(ctx context.Context, d Descriptor, id guid.GUID) {
	if !s.Enabled(d.Level, d.Keyword) {
		return
	}
	s.write(ctx, &Event{
		Name:       NameActivityContinue,
		Keyword:    d.Keyword,
		Level:      d.Level,
		ActivityID: id,
		Fields:     []Field{F(FieldThreadID, tid.Current())},
	})
}

// ActivityError emits the event for a failure observed by a running activity.
//
// When telemetry is true the event carries [KeywordTelemetry] in addition to the activity's keyword.
func (s *Sink) ActivityError(ctx context.Context, d Descriptor, id guid.GUID, f *failure.Failure, telemetry bool) {
	k := d.Keyword
	if telemetry {
		k |= KeywordTelemetry
	}
	if !s.Enabled(LevelError, k) {
		return
	}
	fs := make([]Field, 0, 16)
	fs = append(fs, F(FieldCode, f.Code))
	fs = append(fs, failureFields(f)...)
	s.write(ctx, &Event{
		Name:       NameActivityError,
		Keyword:    k,
		Level:      LevelError,
		ActivityID: id,
		Fields:     fs,
	})
}

// ActivityFailure emits the telemetry event for an activity that finished with a failed result.
//
// If f is nil, the activity's call context is reported in place of the failure details.
func (s *Sink) ActivityFailure(ctx context.Context, d Descriptor, id guid.GUID, result failure.Code, f *failure.Failure, cc callctx.Snapshot) {
	k := d.Keyword | KeywordTelemetry
	if !s.Enabled(LevelError, k) {
		return
	}
	fs := make([]Field, 0, 16)
	fs = append(fs, F(FieldCode, result))
	if f != nil {
		fs = append(fs, failureFields(f)...)
	} else {
		fs = append(fs,
			F(FieldCurrentContextName, cc.Name),
			F(FieldCurrentContextMessage, cc.Message),
		)
	}
	s.write(ctx, &Event{
		Name:       NameActivityFailure,
		Keyword:    k,
		Level:      LevelError,
		ActivityID: id,
		Fields:     append(fs, F(FieldActivityName, d.Name)),
	})
}

// Tagged emits an informational event associated with an activity.
func (s *Sink) Tagged(ctx context.Context, d Descriptor, id guid.GUID, fields ...Field) {
	if !s.Enabled(d.Level, d.Keyword) {
		return
	}
	s.write(ctx, &Event{
		Name:       d.Name,
		Keyword:    d.Keyword,
		Level:      d.Level,
		ActivityID: id,
		Fields:     fields,
	})
}

// FallbackError emits the event for a failure not attributed to any activity.
func (s *Sink) FallbackError(ctx context.Context, f *failure.Failure, k Keyword) {
	if !s.Enabled(LevelError, k) {
		return
	}
	fs := make([]Field, 0, 16)
	fs = append(fs, F(FieldCode, f.Code))
	fs = append(fs, failureFields(f)...)
	s.write(ctx, &Event{
		Name:    NameFallbackError,
		Keyword: k,
		Level:   LevelError,
		Fields:  fs,
	})
}

// Message emits a standalone message event.
func (s *Sink) Message(ctx context.Context, name string, l Level, k Keyword, msg string) {
	if !s.Enabled(l, k) {
		return
	}
	s.write(ctx, &Event{
		Name:    name,
		Keyword: k,
		Level:   l,
		Fields:  []Field{F(FieldMessage, msg)},
	})
}

func (s *Sink) write(ctx context.Context, e *Event) {
	e.Provider = s.provider
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if err := s.w.Write(ctx, e); err != nil {
		handleError(err)
	}
}

// failureFields returns the payload describing f, excluding its code.
func failureFields(f *failure.Failure) []Field {
	return []Field{
		F(FieldFileName, f.Location.File),
		F(FieldLineNumber, f.Location.Line),
		F(FieldFunction, f.Location.Function),
		F(FieldModule, f.Location.Module),
		F(FieldFailureType, f.Type.String()),
		F(FieldMessage, f.Message),
		F(FieldThreadID, f.ThreadID),
		F(FieldFailureID, f.ID),
		F(FieldCallContext, f.CallContext),
		F(FieldOriginatingContextID, f.Originating.ID),
		F(FieldOriginatingContextName, f.Originating.Name),
		F(FieldOriginatingContextMessage, f.Originating.Message),
		F(FieldCurrentContextID, f.Current.ID),
		F(FieldCurrentContextName, f.Current.Name),
		F(FieldCurrentContextMessage, f.Current.Message),
	}
}
