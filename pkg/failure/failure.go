// Package failure records failure occurrences and routes them to the watchers installed on a
// [context.Context], falling back to a process-wide handler when no watcher is active.
package failure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/Microsoft/go-activity/pkg/callctx"
)

//go:generate go run golang.org/x/tools/cmd/stringer -type=Type -trimprefix=Type failure.go

// Type is how a failure was raised.
type Type int

const (
	// TypeException is a recovered panic.
	TypeException Type = iota
	// TypeReturn is an error returned up the stack and checked with [Check].
	TypeReturn
	// TypeLog is a failure logged with [Report] without altering control flow.
	TypeLog
	// TypeFailFast is a failure that terminated the process.
	TypeFailFast
)

// Location is the source location where a failure was raised.
type Location struct {
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Function string `json:"function,omitempty"`
	Module   string `json:"module,omitempty"`
}

func (l Location) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Failure is an immutable record of one failure occurrence.
//
// Each watcher receives its own shallow copy, differing only by [Failure.Current].
type Failure struct {
	Code     Code     `json:"hresult"`
	Type     Type     `json:"failureType"`
	Location Location `json:"location"`
	Message  string   `json:"message,omitempty"`
	// Err is the error that raised the failure, if any.
	Err error `json:"-"`

	ThreadID uint32    `json:"threadId"`
	ID       uint32    `json:"failureId"`
	Time     time.Time `json:"time"`

	// CallContext lists the names of all active call contexts, outermost first, separated by `\`.
	CallContext string `json:"callContext,omitempty"`
	// Originating is the innermost call context active where the failure was raised.
	Originating callctx.Snapshot `json:"originatingContext"`
	// Current is the call context of the watcher observing this copy of the failure.
	Current callctx.Snapshot `json:"currentContext"`
}

func (f *Failure) Error() string {
	if f.Message != "" {
		return fmt.Sprintf("%s: %s (%s)", f.Code, f.Message, f.Location)
	}
	return fmt.Sprintf("%s (%s)", f.Code, f.Location)
}

func (f *Failure) Unwrap() error { return f.Err }

var failureID atomic.Uint32

func nextFailureID() uint32 {
	for {
		if id := failureID.Add(1); id != 0 {
			return id
		}
	}
}

var lastReported atomic.Uint32

// WasAlreadyReported records id as the most recently reported failure, and returns true if it
// already was.
//
// This is a best-effort heuristic for suppressing duplicate telemetry: concurrent distinct
// failures can interleave and defeat it.
func WasAlreadyReported(id uint32) bool {
	return lastReported.Swap(id) == id
}

// module name reported on failure records
var moduleName = sync.OnceValue(func() string {
	p, err := os.Executable()
	if err != nil {
		return filepath.Base(os.Args[0])
	}
	return filepath.Base(p)
})

// Error is an error that carries a status code.
type Error struct {
	code Code
	msg  string
	err  error
}

var _ Coder = (*Error)(nil)

// New returns an error with the given code and message, annotated with the caller's stack.
func New(code Code, msg string) error {
	return pkgerrors.WithStack(&Error{code: code, msg: msg})
}

// Errorf is like [New] but formats the message. "%w" verbs are supported.
func Errorf(code Code, format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	return pkgerrors.WithStack(&Error{code: code, msg: err.Error(), err: errors.Unwrap(err)})
}

// WithCode annotates err with code, preserving err in the chain.
func WithCode(err error, code Code) error {
	if err == nil {
		return nil
	}
	return &Error{code: code, msg: err.Error(), err: err}
}

func (e *Error) Code() Code    { return e.code }
func (e *Error) Unwrap() error { return e.err }

func (e *Error) Error() string {
	if e.msg == "" {
		return e.code.Name()
	}
	return e.msg
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// errorLocation returns the location of the innermost stack recorded by pkg/errors in err's chain.
func errorLocation(err error) (Location, bool) {
	var st stackTracer
	found := false
	for e := err; e != nil; e = errors.Unwrap(e) {
		if s, ok := e.(stackTracer); ok {
			st = s
			found = true
		}
	}
	if !found {
		return Location{}, false
	}
	for _, fr := range st.StackTrace() {
		// see [pkgerrors.Frame]: the frame value is the program counter + 1
		pc := uintptr(fr) - 1
		if fn := runtime.FuncForPC(pc); fn != nil && constructors()[fn.Name()] {
			continue
		}
		return pcLocation(pc), true
	}
	return Location{}, false
}

// functions in this package that record a stack, which must be skipped when locating the failure
var constructors = sync.OnceValue(func() map[string]bool {
	m := make(map[string]bool)
	for _, f := range []any{New, Errorf} {
		if fn := runtime.FuncForPC(reflect.ValueOf(f).Pointer()); fn != nil {
			m[fn.Name()] = true
		}
	}
	return m
})

func callerLocation(skip int) Location {
	pc, file, line, ok := runtime.Caller(skip + 1)
	l := Location{Module: moduleName()}
	if !ok {
		return l
	}
	l.File, l.Line = file, line
	if fn := runtime.FuncForPC(pc); fn != nil {
		l.Function = fn.Name()
	}
	return l
}

func pcLocation(pc uintptr) Location {
	l := Location{Module: moduleName()}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return l
	}
	l.File, l.Line = fn.FileLine(pc)
	l.Function = fn.Name()
	return l
}
