package activity

import (
	"sync"
	"time"

	"github.com/Microsoft/go-winio/pkg/guid"

	"github.com/Microsoft/go-activity/internal/failfast"
	"github.com/Microsoft/go-activity/internal/option"
	"github.com/Microsoft/go-activity/pkg/callctx"
	"github.com/Microsoft/go-activity/pkg/failure"
)

//go:generate go run golang.org/x/tools/cmd/stringer -type=State -trimprefix=State data.go

// State is the lifecycle state of an activity.
type State uint8

const (
	StateNotStarted State = iota
	StateRunning
	StateFinished
)

// data is the state of a single activity, which may be shared between several handles.
type data struct {
	typ     *Type
	id      guid.GUID
	related option.Option[guid.GUID]
	state   State
	started time.Time

	result  failure.Code
	failure *failure.Failure
	// number of Stop calls still expected: one, plus one per Split
	stopsExpected int

	cc *callctx.Info
}

func newData(t *Type) *data {
	return &data{
		typ:           t,
		stopsExpected: 1,
		cc:            callctx.New(t.Name()),
	}
}

// shared is activity data referenced by more than one handle, or by a handle's watchers.
type shared struct {
	mu   sync.Mutex
	refs int
	d    *data
}

func (s *shared) lock() (*data, func()) {
	s.mu.Lock()
	return s.d, s.mu.Unlock
}

func (d *data) running() bool { return d.state == StateRunning }

func (d *data) setRelated(id guid.GUID) {
	failfast.If(d.state != StateNotStarted, "activity %s: related activity set after start", d.typ.Name())
	failfast.If(option.IsSome(d.related), "activity %s: related activity already set", d.typ.Name())
	d.related = option.Some(id)
}

func (d *data) relatedID() guid.GUID {
	return option.UnwrapOrDefault(d.related)
}

// setStopResult records the result of a Stop call, and returns true if it was the last expected
// call. The first failed result is kept.
func (d *data) setStopResult(code failure.Code) bool {
	failfast.If(d.stopsExpected < 1, "activity %s (%s): stopped more times than expected", d.typ.Name(), d.id)
	if d.result.Succeeded() {
		d.result = code
	}
	d.stopsExpected--
	return d.stopsExpected == 0
}

// setUnhandled sets the result of an activity abandoned while running: the captured failure's
// code, or [failure.CodeUnhandledException] if nothing failed.
func (d *data) setUnhandled() {
	code := failure.CodeUnhandledException
	if d.failure != nil {
		code = d.failure.Code
	}
	if d.result.Succeeded() {
		d.result = code
	}
	d.stopsExpected = 0
}

// notifyFailure stores f, unless it is the same failure propagating up the stack or the result
// already explains it.
func (d *data) notifyFailure(f *failure.Failure) {
	if d.state == StateFinished {
		return
	}
	stored := failure.OK
	if d.failure != nil {
		stored = d.failure.Code
	}
	if f.Code == stored {
		return
	}
	if f.Code == d.result && d.result.Failed() {
		return
	}
	d.failure = f
}

// finalResult is the result reported in the terminal event. A success is replaced with the code
// of the captured failure, if there is one.
func (d *data) finalResult() failure.Code {
	if d.result.Succeeded() && d.failure != nil {
		return d.failure.Code
	}
	return d.result
}

// failureInfo returns the captured failure if it explains the (failed) result.
func (d *data) failureInfo() *failure.Failure {
	if d.result.Failed() && d.failure != nil && d.failure.Code == d.result {
		return d.failure
	}
	return nil
}
