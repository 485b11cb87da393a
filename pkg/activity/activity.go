// Package activity tracks units of work from start to finish, correlating the failures raised
// while they run and writing exactly one terminal event per activity, no matter how many handles
// refer to it.
//
// An [Activity] handle either owns its data exclusively, or shares it with other handles created
// by [Activity.Copy] or [Activity.Split]. Shared data is reference counted and locked; exclusive
// data is not. A handle that watches for failures always uses shared data, since failures can be
// reported from any goroutine holding the watched context. A single handle must not be used from
// more than one goroutine at a time.
//
// Failures are attributed to an activity through the [context.Context] returned by
// [Activity.Start]: any failure reported (see [failure.Report] and [failure.Check]) with that
// context, or a context derived from it, is delivered to the activity.
package activity

import (
	"context"
	"time"

	"github.com/Microsoft/go-winio/pkg/guid"
	"github.com/sirupsen/logrus"

	"github.com/Microsoft/go-activity/internal/failfast"
	"github.com/Microsoft/go-activity/internal/log"
	"github.com/Microsoft/go-activity/internal/option"
	"github.com/Microsoft/go-activity/internal/otel/metric"
	"github.com/Microsoft/go-activity/pkg/callctx"
	"github.com/Microsoft/go-activity/pkg/event"
	"github.com/Microsoft/go-activity/pkg/failure"
	"github.com/Microsoft/go-activity/pkg/provider"
)

// metric outcomes
const (
	outcomeStopped   = "stopped"
	outcomeUnhandled = "unhandled"
)

// Activity is a handle to an activity.
//
// Exactly one of owned and shared is set.
type Activity struct {
	owned  *data
	shared *shared

	watcher *failure.Watcher
}

var _ failure.Callback = (*Activity)(nil)

type activityKey struct{}

// FromContext returns the ID of the activity most recently started with ctx or one of its parents.
func FromContext(ctx context.Context) (guid.GUID, bool) {
	id, ok := ctx.Value(activityKey{}).(guid.GUID)
	return id, ok
}

// lock returns the handle's data, locking it if it is shared.
func (a *Activity) lock() (*data, func()) {
	if s := a.shared; s != nil {
		return s.lock()
	}
	return a.owned, func() {}
}

// share converts exclusively owned data to shared data, and returns it.
func (a *Activity) share() *shared {
	if a.owned != nil {
		a.shared = &shared{refs: 1, d: a.owned}
		a.owned = nil
	}
	return a.shared
}

// typ returns the activity type, which never changes and can be read without the lock.
func (a *Activity) typ() *Type {
	if s := a.shared; s != nil {
		return s.d.typ
	}
	return a.owned.typ
}

// Start starts the activity, writes its start event, and returns a context that attributes
// failures to it.
//
// Starting an activity more than once is a fatal usage error.
func (a *Activity) Start(ctx context.Context, fields ...event.Field) context.Context {
	t := a.typ()
	id, related := a.start()

	if len(t.fields) > 0 {
		fields = append(append(make([]event.Field, 0, len(t.fields)+len(fields)), t.fields...), fields...)
	}
	if err := event.ValidateFields(fields...); err != nil {
		failfast.Immediate("activity %s: invalid start fields: %v", t.Name(), err)
	}
	t.p.Sink().Start(ctx, t.desc, id, related, fields...)
	metric.Activity().Started(ctx, t.p.Name(), t.Name())

	ctx = log.WithFields(ctx, logrus.Fields{
		log.ActivityIDKey:   id.String(),
		log.ActivityNameKey: t.Name(),
	})
	log.G(ctx).Trace("activity started")
	ctx = context.WithValue(ctx, activityKey{}, id)
	return a.EnsureWatchingCurrentThread(ctx)
}

func (a *Activity) start() (id, related guid.GUID) {
	d, unlock := a.lock()
	defer unlock()

	failfast.If(d.state != StateNotStarted, "activity %s (%s): started while %s", d.typ.Name(), d.id, d.state)
	related = d.relatedID()
	d.id = d.typ.p.NewActivityID(related)
	d.state = StateRunning
	d.started = time.Now()
	d.cc.EnsureID()
	return d.id, related
}

// StartRelated starts the activity with the activity running in ctx (see [FromContext]) as its
// related activity, unless a related activity was already set.
func (a *Activity) StartRelated(ctx context.Context, fields ...event.Field) context.Context {
	if id, ok := FromContext(ctx); ok {
		d, unlock := a.lock()
		if d.state == StateNotStarted && option.IsNone(d.related) {
			d.related = option.Some(id)
		}
		unlock()
	}
	return a.Start(ctx, fields...)
}

// SetRelatedActivity sets other as the related (parent) activity.
func (a *Activity) SetRelatedActivity(other *Activity) {
	a.SetRelatedActivityID(other.ID())
}

// SetRelatedActivityID sets the ID of the related (parent) activity. It may be called once,
// before the activity starts; anything else is a fatal usage error.
func (a *Activity) SetRelatedActivityID(id guid.GUID) {
	d, unlock := a.lock()
	defer unlock()
	d.setRelated(id)
}

// Stop completes one expected stop of the activity with the given result.
//
// The activity finishes on the last expected stop (one, plus one for every [Activity.Split]), and
// writes its terminal event with the first failed result passed to Stop, or with the code of the
// last captured failure if every stop succeeded. Earlier stops write an
// [event.NameActivityIntermediateStop] event. fields are only added to the terminal event.
//
// The handle stops watching for failures. Stopping a handle that has not started, or more times
// than expected, is a fatal usage error.
func (a *Activity) Stop(ctx context.Context, code failure.Code, fields ...event.Field) {
	r, last := a.stop(code)
	if last {
		r.emit(ctx, fields...)
	} else {
		r.t.p.Sink().IntermediateStop(ctx, r.t.desc, r.id, code)
	}
	a.IgnoreCurrentThread()
}

// StopWithError is like [Activity.Stop], with the result taken from err (see [failure.CodeOf]).
// A nil err is a success.
func (a *Activity) StopWithError(ctx context.Context, err error, fields ...event.Field) {
	code := failure.OK
	if err != nil {
		code = failure.CodeOf(err)
	}
	a.Stop(ctx, code, fields...)
}

func (a *Activity) stop(code failure.Code) (report, bool) {
	d, unlock := a.lock()
	defer unlock()

	failfast.If(d.state == StateNotStarted, "activity %s: stopped before it started", d.typ.Name())
	if !d.setStopResult(code) {
		return report{t: d.typ, id: d.id}, false
	}
	return d.finish(outcomeStopped), true
}

// Split adds an expected stop to a running activity, and returns a new handle for it.
//
// Use Split to hand part of an activity's work to another goroutine; the activity finishes once
// every handle has been stopped. Splitting an activity that is not running is a fatal usage error.
func (a *Activity) Split() *Activity {
	func() {
		d, unlock := a.lock()
		defer unlock()
		failfast.If(!d.running(), "activity %s (%s): split while %s", d.typ.Name(), d.id, d.state)
		d.stopsExpected++
	}()
	return a.Copy()
}

// Copy returns a new handle that shares the activity.
//
// The first copy of an exclusively owned activity converts it to shared data. The new handle
// does not watch for failures.
func (a *Activity) Copy() *Activity {
	if a.owned != nil {
		// the data was exclusive until now, so no other goroutine can be using it
		a.shared = &shared{refs: 2, d: a.owned}
		a.owned = nil
		return &Activity{shared: a.shared}
	}

	s := a.shared
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
	return &Activity{shared: s}
}

// Transfer moves the activity to a new handle that does not watch for failures.
//
// This handle stops watching and is reset to a new, unstarted activity of the same type.
func (a *Activity) Transfer() *Activity {
	dst := &Activity{owned: a.owned, shared: a.shared}
	a.IgnoreCurrentThread()
	a.owned, a.shared = newData(dst.typ()), nil
	return dst
}

// TransferToCurrentThread moves the activity to a new handle, like [Activity.Transfer]. If the
// activity is running, the new handle watches for failures reported with the returned context.
func (a *Activity) TransferToCurrentThread(ctx context.Context) (context.Context, *Activity) {
	dst := a.Transfer()
	if dst.Running() {
		ctx = dst.EnsureWatchingCurrentThread(ctx)
	}
	return ctx, dst
}

// Close releases the handle.
//
// If this was the last handle to a running activity, the activity finishes with the code of the
// captured failure, or [failure.CodeUnhandledException] if there is none. Close is idempotent:
// afterwards, the handle refers to a new, unstarted activity.
func (a *Activity) Close() {
	a.IgnoreCurrentThread()
	t := a.typ()
	var (
		r    report
		emit bool
	)
	if s := a.shared; s != nil {
		// the reference count check and the release must be atomic, so that exactly one of
		// several handles closed concurrently sees itself as the last, and a watcher still
		// delivering a failure never sees released data
		s.mu.Lock()
		s.refs--
		if s.refs == 0 {
			r, emit = s.d.release()
		}
		s.mu.Unlock()
	} else {
		r, emit = a.owned.release()
	}
	a.owned, a.shared = newData(t), nil
	if emit {
		r.emit(context.Background())
	}
}

// EnsureWatchingCurrentThread returns a context that attributes failures to the activity.
//
// If the handle already watches ctx, ctx is returned unchanged. Otherwise any previous watcher of
// this handle is stopped, and a new one is installed on a context derived from ctx.
func (a *Activity) EnsureWatchingCurrentThread(ctx context.Context) context.Context {
	if a.watcher.Active() && a.watcher.In(ctx) {
		return ctx
	}
	a.watcher.Stop()
	w := watchTarget{a.share()}
	ctx, a.watcher = failure.Watch(ctx, w, w)
	return ctx
}

// IgnoreCurrentThread stops the handle from watching for failures.
func (a *Activity) IgnoreCurrentThread() {
	a.watcher.Stop()
	a.watcher = nil
}

// Watching returns true if the handle watches for failures.
func (a *Activity) Watching() bool {
	return a.watcher.Active()
}

// ContinueOnCurrentThread writes an [event.NameActivityContinue] event for a running activity,
// and returns a watcher that attributes failures reported with the returned context to the
// activity. The watcher has a copy of the activity's call context, and must be closed when the
// work completes.
//
// If the activity is not running, ctx and a nil watcher are returned. Closing a nil watcher is
// safe.
func (a *Activity) ContinueOnCurrentThread(ctx context.Context) (context.Context, *failure.ThreadWatcher) {
	d, unlock := a.lock()
	if !d.running() {
		unlock()
		return ctx, nil
	}
	t, id, cc := d.typ, d.id, d.cc.Clone()
	unlock()

	t.p.Sink().Continue(ctx, t.desc, id)
	return failure.WatchThreadWith(ctx, watchTarget{a.share()}, cc)
}

// NotifyFailure records a failure observed while the activity runs.
//
// An [event.NameActivityError] event is always written. It carries the telemetry keyword if the
// type reports telemetry on failure, and the failure was not already reported to telemetry. Once
// the activity finishes, failures are no longer recorded.
func (a *Activity) NotifyFailure(f *failure.Failure) bool {
	return notifyFailure(a.typ(), a.lock, f)
}

func notifyFailure(t *Type, lock func() (*data, func()), f *failure.Failure) bool {
	d, unlock := lock()
	id := d.id
	unlock()

	ctx := context.Background()
	telemetry := t.telemetryOnFailure && !failure.WasAlreadyReported(f.ID)
	t.p.Sink().ActivityError(ctx, t.desc, id, f, telemetry)
	metric.Activity().Error(ctx, t.p.Name(), t.Name(), f.Code.String())

	d, unlock = lock()
	d.notifyFailure(f)
	unlock()
	return true
}

// WriteEvent writes an event associated with the activity, with the activity type's keyword and
// level.
func (a *Activity) WriteEvent(ctx context.Context, name string, fields ...event.Field) {
	t := a.typ()
	d, unlock := a.lock()
	id := d.id
	unlock()

	t.p.Sink().Tagged(ctx, event.Descriptor{
		Name:    name,
		Keyword: t.desc.Keyword,
		Level:   t.desc.Level,
	}, id, fields...)
}

// SetMessage sets the call context message reported with failures. msg is not copied.
func (a *Activity) SetMessage(msg string) {
	d, unlock := a.lock()
	defer unlock()
	d.cc.SetMessage(msg)
}

// SetMessagef sets a formatted call context message, truncated to [callctx.MaxMessageLength].
func (a *Activity) SetMessagef(format string, args ...any) {
	d, unlock := a.lock()
	defer unlock()
	d.cc.SetMessagef(format, args...)
}

// SetMessageCopy sets the call context message to a copy of msg.
func (a *Activity) SetMessageCopy(msg string) {
	d, unlock := a.lock()
	defer unlock()
	d.cc.SetMessageCopy(msg)
}

// CallContext returns a snapshot of the activity's call context.
func (a *Activity) CallContext() callctx.Snapshot {
	d, unlock := a.lock()
	defer unlock()
	return d.cc.Snapshot()
}

// Type returns the activity's type.
func (a *Activity) Type() *Type { return a.typ() }

// Provider returns the provider the activity's events are written to.
func (a *Activity) Provider() *provider.Provider { return a.typ().p }

// ID returns the activity ID, which is the zero GUID until the activity starts.
func (a *Activity) ID() guid.GUID {
	d, unlock := a.lock()
	defer unlock()
	return d.id
}

// RelatedID returns the ID of the related activity, if one was set.
func (a *Activity) RelatedID() (guid.GUID, bool) {
	d, unlock := a.lock()
	defer unlock()
	return d.relatedID(), option.IsSome(d.related)
}

// State returns where the activity is in its lifecycle.
func (a *Activity) State() State {
	d, unlock := a.lock()
	defer unlock()
	return d.state
}

// Running returns true between the start of the activity and its last expected stop.
func (a *Activity) Running() bool { return a.State() == StateRunning }

// Result returns the activity's result so far.
func (a *Activity) Result() failure.Code {
	d, unlock := a.lock()
	defer unlock()
	return d.result
}

// Failure returns the captured failure if the activity's result failed with that failure's code,
// and nil otherwise.
func (a *Activity) Failure() *failure.Failure {
	d, unlock := a.lock()
	defer unlock()
	return d.failureInfo()
}

// watchTarget receives the failures observed by an activity's watchers, and supplies them with
// the activity's call context. It refers to the shared data, not to the handle, which belongs to
// the goroutine that owns it.
type watchTarget struct{ s *shared }

var (
	_ failure.Callback = watchTarget{}
	_ failure.Source   = watchTarget{}
)

func (w watchTarget) NotifyFailure(f *failure.Failure) bool {
	return notifyFailure(w.s.d.typ, w.s.lock, f)
}

func (w watchTarget) Snapshot() callctx.Snapshot {
	d, unlock := w.s.lock()
	defer unlock()
	return d.cc.Snapshot()
}

// report holds what is needed to write the terminal event of an activity, so that it can be
// written after the data is unlocked.
type report struct {
	t           *Type
	id, related guid.GUID
	result      failure.Code
	failure     *failure.Failure
	cc          callctx.Snapshot
	duration    time.Duration
	outcome     string
}

// finish marks the activity finished and returns its terminal report.
func (d *data) finish(outcome string) report {
	d.state = StateFinished
	d.result = d.finalResult()
	return report{
		t:        d.typ,
		id:       d.id,
		related:  d.relatedID(),
		result:   d.result,
		failure:  d.failureInfo(),
		cc:       d.cc.Snapshot(),
		duration: time.Since(d.started),
		outcome:  outcome,
	}
}

// release finalizes data that no handle refers to anymore. A running activity finishes as
// unhandled, and its terminal report is returned.
func (d *data) release() (r report, emit bool) {
	if d.running() {
		d.setUnhandled()
		r, emit = d.finish(outcomeUnhandled), true
	}
	d.cc.Release()
	return r, emit
}

func (r report) emit(ctx context.Context, fields ...event.Field) {
	t := r.t
	s := t.p.Sink()
	if r.result.Failed() && t.telemetryOnFailure && !t.desc.Keyword.Telemetry() {
		s.ActivityFailure(ctx, t.desc, r.id, r.result, r.failure, r.cc)
	}
	s.Stop(ctx, t.desc, r.id, r.related, r.result, r.failure, fields...)
	metric.Activity().Stopped(ctx, t.p.Name(), t.Name(), r.result.String(), r.outcome, r.duration)

	log.G(ctx).WithFields(logrus.Fields{
		log.ActivityIDKey:   r.id.String(),
		log.ActivityNameKey: t.Name(),
		log.CodeKey:         r.result.String(),
		"outcome":           r.outcome,
	}).Trace("activity finished")
}
