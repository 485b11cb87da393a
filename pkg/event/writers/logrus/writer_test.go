package logrus

import (
	"context"
	"testing"
	"time"

	"github.com/Microsoft/go-winio/pkg/guid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/Microsoft/go-activity/internal/log"
	"github.com/Microsoft/go-activity/pkg/event"
	"github.com/Microsoft/go-activity/pkg/failure"
)

func TestWriter(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)
	w := New(WithLogger(logger), WithExtra(logrus.Fields{"component": "test"}))

	if w.Enabled(event.LevelVerbose, 0) {
		t.Fatal("verbose events should be disabled at info level")
	}
	if !w.Enabled(event.LevelError, 0) {
		t.Fatal("error events should be enabled at info level")
	}

	id, err := guid.NewV4()
	if err != nil {
		t.Fatalf("new guid: %v", err)
	}
	now := time.Now()
	e := &event.Event{
		Name:       event.NameActivityError,
		Provider:   "Test.Provider",
		Level:      event.LevelError,
		Keyword:    event.KeywordTelemetry,
		ActivityID: id,
		Time:       now,
		Fields: []event.Field{
			event.F(event.FieldCode, failure.CodeFail),
			event.F(event.FieldMessage, "first"),
			event.F(event.FieldMessage, "second"),
		},
	}
	if err := w.Write(context.Background(), e); err != nil {
		t.Fatalf("write: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("no entry logged")
	}
	if entry.Level != logrus.ErrorLevel {
		t.Fatalf("got level %v, wanted %v", entry.Level, logrus.ErrorLevel)
	}
	if entry.Message != event.NameActivityError {
		t.Fatalf("got message %q, wanted %q", entry.Message, event.NameActivityError)
	}
	if !entry.Time.Equal(now) {
		t.Fatalf("got time %v, wanted %v", entry.Time, now)
	}
	for k, v := range map[string]any{
		log.ActivityIDKey:  id.String(),
		log.ProviderKey:    "Test.Provider",
		event.FieldCode:    failure.CodeFail,
		event.FieldMessage: "first",
		"component":        "test",
	} {
		if got := entry.Data[k]; got != v {
			t.Errorf("field %q is %v, wanted %v", k, got, v)
		}
	}
}

func TestLevel(t *testing.T) {
	for l, want := range map[event.Level]logrus.Level{
		event.LevelAlways:   logrus.InfoLevel,
		event.LevelCritical: logrus.ErrorLevel,
		event.LevelError:    logrus.ErrorLevel,
		event.LevelWarning:  logrus.WarnLevel,
		event.LevelInfo:     logrus.InfoLevel,
		event.LevelVerbose:  logrus.DebugLevel,
		event.Level(9):      logrus.TraceLevel,
	} {
		if got := Level(l); got != want {
			t.Errorf("Level(%v) = %v, wanted %v", l, got, want)
		}
	}
}
