// Package event defines the structured events emitted for activities and failures, and the
// [Writer] interface that delivers them to a tracing backend.
package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Microsoft/go-winio/pkg/guid"
	"github.com/sirupsen/logrus"
)

// Level represents the event level. Lower levels indicate more important events, and 0 indicates
// an event that will always be collected.
type Level uint8

// Predefined levels, matching the ETW levels.
const (
	LevelAlways Level = iota
	LevelCritical
	LevelError
	LevelWarning
	LevelInfo
	LevelVerbose
)

var levelNames = [...]string{"always", "critical", "error", "warning", "info", "verbose"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("Level(%d)", uint8(l))
}

// ParseLevel parses a level name, as returned by [Level.String].
func ParseLevel(s string) (Level, error) {
	for i, n := range levelNames {
		if strings.EqualFold(s, n) {
			return Level(i), nil
		}
	}
	return LevelAlways, fmt.Errorf("unknown event level %q", s)
}

// Keyword is a bitmask of event categories.
type Keyword uint64

// Keywords with special handling: events carrying any of them are routed to telemetry.
const (
	KeywordTelemetry    Keyword = 0x0000200000000000
	KeywordMeasures     Keyword = 0x0000400000000000
	KeywordCriticalData Keyword = 0x0000800000000000

	TelemetryKeywords = KeywordTelemetry | KeywordMeasures | KeywordCriticalData
)

// Telemetry returns true if k has any telemetry-bearing bit set.
func (k Keyword) Telemetry() bool { return k&TelemetryKeywords != 0 }

func (k Keyword) String() string { return fmt.Sprintf("0x%016X", uint64(k)) }

// Opcode represents the operation that the event indicates is being performed.
type Opcode uint8

const (
	OpcodeInfo Opcode = iota
	OpcodeStart
	OpcodeStop
)

func (o Opcode) String() string {
	switch o {
	case OpcodeInfo:
		return "info"
	case OpcodeStart:
		return "start"
	case OpcodeStop:
		return "stop"
	}
	return fmt.Sprintf("Opcode(%d)", uint8(o))
}

// Field is a named event payload value.
type Field struct {
	Name  string
	Value any
}

// F is shorthand for creating a [Field].
func F(name string, v any) Field { return Field{Name: name, Value: v} }

// Event is a structured event.
type Event struct {
	Name     string
	Provider string
	Opcode   Opcode
	Keyword  Keyword
	Level    Level

	// ActivityID and RelatedActivityID are zero for events not associated with an activity.
	ActivityID        guid.GUID
	RelatedActivityID guid.GUID

	Time time.Time
	// Fields are kept in emission order. If a name is repeated, the first definition wins.
	Fields []Field
}

// Field returns the first field named name.
func (e *Event) Field(name string) (any, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

//go:generate go run go.uber.org/mock/mockgen -destination=mock/writer.go -package=mock . Writer

// Writer delivers events to a tracing backend.
//
// Implementations must be safe for concurrent use.
type Writer interface {
	// Enabled returns true if an event with the given level and keyword would be written.
	Enabled(Level, Keyword) bool
	// Write writes the event. The event must not be retained after Write returns.
	Write(context.Context, *Event) error
}

// ErrNoWriter is returned when constructing a [Sink] without a [Writer].
var ErrNoWriter = errors.New("no event writer")

type tee []Writer

// Tee returns a [Writer] that writes events to all writers that have them enabled.
func Tee(ws ...Writer) Writer {
	t := make(tee, 0, len(ws))
	for _, w := range ws {
		if w != nil {
			t = append(t, w)
		}
	}
	return t
}

func (t tee) Enabled(l Level, k Keyword) bool {
	for _, w := range t {
		if w.Enabled(l, k) {
			return true
		}
	}
	return false
}

func (t tee) Write(ctx context.Context, e *Event) error {
	var errs []error
	for _, w := range t {
		if !w.Enabled(e.Level, e.Keyword) {
			continue
		}
		if err := w.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard is a [Writer] that is never enabled.
var Discard Writer = discard{}

type discard struct{}

func (discard) Enabled(Level, Keyword) bool         { return false }
func (discard) Write(context.Context, *Event) error { return nil }

// ErrorHandler handles errors returned by a [Writer].
type ErrorHandler func(error)

var errorHandler atomic.Pointer[ErrorHandler]

// SetErrorHandler sets the handler for errors raised while writing events, and returns the previous
// one. Passing nil restores the default, which logs at [logrus.DebugLevel].
//
// Write errors are never returned to the code being traced.
func SetErrorHandler(h ErrorHandler) ErrorHandler {
	var p *ErrorHandler
	if h != nil {
		p = &h
	}
	if prev := errorHandler.Swap(p); prev != nil {
		return *prev
	}
	return defaultErrorHandler
}

func defaultErrorHandler(err error) {
	logrus.WithError(err).Debug("failed to write event")
}

func handleError(err error) {
	if h := errorHandler.Load(); h != nil {
		(*h)(err)
		return
	}
	defaultErrorHandler(err)
}
