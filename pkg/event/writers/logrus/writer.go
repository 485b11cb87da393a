// Package logrus provides an [event.Writer] that writes events as logrus entries.
package logrus

import (
	"context"

	"github.com/Microsoft/go-winio/pkg/guid"
	"github.com/sirupsen/logrus"

	"github.com/Microsoft/go-activity/internal/log"
	"github.com/Microsoft/go-activity/pkg/event"
)

type writer struct {
	logger *logrus.Logger
	// use the logger in the [context.Context] passed to Write, rather than the configured one
	fromContext bool
	extra       logrus.Fields
}

var _ event.Writer = (*writer)(nil)

type Option func(*writer)

// WithLogger sets the logger events are written to.
//
// The default is [logrus.StandardLogger].
func WithLogger(l *logrus.Logger) Option {
	return func(w *writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithContextLogger writes events to the logger stored in the context passed to Write (see
// [github.com/containerd/log.G]), so that fields added to it are included.
// The configured logger is still used to determine if events are enabled.
func WithContextLogger() Option {
	return func(w *writer) { w.fromContext = true }
}

// WithExtra specifies additional [logrus.Fields] to add to every entry.
func WithExtra(fields logrus.Fields) Option {
	return func(w *writer) {
		for k, v := range fields {
			w.extra[k] = v
		}
	}
}

// New returns an [event.Writer] that logs each event as an entry with the event name as its
// message and the payload as fields.
//
// Event levels are mapped to logrus levels: critical and error events are logged at
// [logrus.ErrorLevel], and verbose events at [logrus.DebugLevel].
func New(opts ...Option) event.Writer {
	w := &writer{
		logger: logrus.StandardLogger(),
		extra:  make(logrus.Fields),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Level returns the logrus level used for events with level l.
func Level(l event.Level) logrus.Level {
	switch l {
	case event.LevelCritical, event.LevelError:
		return logrus.ErrorLevel
	case event.LevelWarning:
		return logrus.WarnLevel
	case event.LevelVerbose:
		return logrus.DebugLevel
	default:
		// always, info, and custom levels
		if l > event.LevelVerbose {
			return logrus.TraceLevel
		}
		return logrus.InfoLevel
	}
}

func (w *writer) Enabled(l event.Level, _ event.Keyword) bool {
	return w.logger.IsLevelEnabled(Level(l))
}

func (w *writer) Write(ctx context.Context, e *event.Event) error {
	// Add fields in batch, rather than incrementally to avoid reallocating
	fs := make(logrus.Fields, len(e.Fields)+len(w.extra)+6)
	for k, v := range w.extra {
		fs[k] = v
	}
	// iterate in reverse so the first definition of a field wins
	for i := len(e.Fields) - 1; i >= 0; i-- {
		f := e.Fields[i]
		fs[f.Name] = f.Value
	}
	if e.Provider != "" {
		fs[log.ProviderKey] = e.Provider
	}
	if e.ActivityID != (guid.GUID{}) {
		fs[log.ActivityIDKey] = e.ActivityID.String()
	}
	if e.RelatedActivityID != (guid.GUID{}) {
		fs[log.RelatedActivityIDKey] = e.RelatedActivityID.String()
	}
	if e.Opcode != event.OpcodeInfo {
		fs["opcode"] = e.Opcode.String()
	}
	if e.Keyword != 0 {
		fs["keyword"] = e.Keyword.String()
	}

	var entry *logrus.Entry
	if w.fromContext {
		entry = log.G(ctx).WithFields(fs)
	} else {
		entry = w.logger.WithContext(ctx).WithFields(fs)
	}
	entry.Time = e.Time
	entry.Log(Level(e.Level), e.Name)
	return nil
}
