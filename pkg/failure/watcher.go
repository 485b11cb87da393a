package failure

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Microsoft/go-activity/internal/log"
	"github.com/Microsoft/go-activity/internal/tid"
	"github.com/Microsoft/go-activity/pkg/callctx"
)

// Callback receives failures raised while it is being watched.
//
// NotifyFailure is called synchronously on the goroutine that raised the failure, and must not
// block. The returned value reports whether the failure was handled; it does not stop the
// failure from propagating to outer watchers.
type Callback interface {
	NotifyFailure(*Failure) bool
}

// CallbackFunc adapts a function to a [Callback].
type CallbackFunc func(*Failure) bool

func (f CallbackFunc) NotifyFailure(fl *Failure) bool { return f(fl) }

// Source provides the call context that enriches failures observed by a watcher.
//
// [*callctx.Info] is a Source. Types whose call context is shared between goroutines provide
// their own Source that snapshots it under a lock.
type Source interface {
	Snapshot() callctx.Snapshot
}

func snapshot(src Source) callctx.Snapshot {
	if src == nil {
		return callctx.Snapshot{}
	}
	return src.Snapshot()
}

type watcherKey struct{}

// Watcher is a failure watcher installed on a [context.Context].
//
// Watchers form a singly-linked list through the context chain, innermost first. A stopped
// watcher stays linked but is skipped.
type Watcher struct {
	parent  *Watcher
	cb      Callback
	src     Source
	stopped atomic.Bool
}

// Watch installs a watcher on a context derived from ctx, so that failures reported with that
// context (or any context derived from it) are forwarded to cb.
//
// src enriches the failures observed by this watcher, and may be nil. A [*callctx.Info] source
// is assigned an ID if it does not already have one.
func Watch(ctx context.Context, cb Callback, src Source) (context.Context, *Watcher) {
	if cc, ok := src.(*callctx.Info); ok && cc != nil {
		cc.EnsureID()
	}
	w := &Watcher{
		parent: fromContext(ctx),
		cb:     cb,
		src:    src,
	}
	return context.WithValue(ctx, watcherKey{}, w), w
}

func fromContext(ctx context.Context) *Watcher {
	w, _ := ctx.Value(watcherKey{}).(*Watcher)
	return w
}

// Watching returns true if ctx has an active watcher.
func Watching(ctx context.Context) bool {
	for w := fromContext(ctx); w != nil; w = w.parent {
		if w.Active() {
			return true
		}
	}
	return false
}

// Stop uninstalls the watcher. It is safe to call multiple times, and on a nil Watcher.
func (w *Watcher) Stop() {
	if w != nil {
		w.stopped.Store(true)
	}
}

// Active returns true until [Watcher.Stop] is called.
func (w *Watcher) Active() bool {
	return w != nil && !w.stopped.Load()
}

// In returns true if w is installed on ctx or one of its parents.
func (w *Watcher) In(ctx context.Context) bool {
	if w == nil {
		return false
	}
	for c := fromContext(ctx); c != nil; c = c.parent {
		if c == w {
			return true
		}
	}
	return false
}

// CallContext returns a snapshot of the watcher's call context.
func (w *Watcher) CallContext() callctx.Snapshot {
	if w == nil {
		return callctx.Snapshot{}
	}
	return snapshot(w.src)
}

var fallback atomic.Pointer[Callback]

// SetFallback sets the callback that receives failures reported while no watcher is active,
// and returns the previous one. Passing nil removes the fallback.
func SetFallback(cb Callback) Callback {
	var p *Callback
	if cb != nil {
		p = &cb
	}
	if prev := fallback.Swap(p); prev != nil {
		return *prev
	}
	return nil
}

// RemoveFallback removes cb if it is the current fallback, and returns true if it was removed.
// The dynamic type of cb must be comparable.
func RemoveFallback(cb Callback) bool {
	p := fallback.Load()
	if p == nil || *p != cb {
		return false
	}
	return fallback.CompareAndSwap(p, nil)
}

// Report records a failure of type [TypeLog] at the caller's location.
// It returns the failure record.
func Report(ctx context.Context, code Code, msg string) *Failure {
	f := newFailure(code, TypeLog, msg, nil, callerLocation(1))
	dispatch(ctx, f)
	return f
}

// Reportf is like [Report] but formats the message.
func Reportf(ctx context.Context, code Code, format string, args ...any) *Failure {
	f := newFailure(code, TypeLog, fmt.Sprintf(format, args...), nil, callerLocation(1))
	dispatch(ctx, f)
	return f
}

// Check reports err as a failure of type [TypeReturn], and returns it unchanged. A nil err is
// ignored.
//
// The failure code is [CodeOf] err, and the location is taken from the error's
// [github.com/pkg/errors] stack, if it has one, or the caller otherwise.
func Check(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	loc, ok := errorLocation(err)
	if !ok {
		loc = callerLocation(1)
	}
	dispatch(ctx, newFailure(CodeOf(err), TypeReturn, err.Error(), err, loc))
	return err
}

// ReportPanic reports a recovered panic value as a failure of type [TypeException], and returns
// the failure record. Use it in a deferred function:
//
//	defer func() {
//		if r := recover(); r != nil {
//			failure.ReportPanic(ctx, r)
//		}
//	}()
func ReportPanic(ctx context.Context, r any) *Failure {
	code := CodeUnhandledException
	err, _ := r.(error)
	if c := CodeOf(err); err != nil && c != CodeFail {
		code = c
	}
	f := newFailure(code, TypeException, fmt.Sprint(r), err, callerLocation(1))
	dispatch(ctx, f)
	return f
}

func newFailure(code Code, typ Type, msg string, err error, loc Location) *Failure {
	if code.Succeeded() {
		// failures are never reported as successes
		code = CodeFail
	}
	return &Failure{
		Code:     code,
		Type:     typ,
		Location: loc,
		Message:  msg,
		Err:      err,
		ThreadID: tid.Current(),
		ID:       nextFailureID(),
		Time:     time.Now(),
	}
}

func dispatch(ctx context.Context, f *Failure) {
	var ws []*Watcher
	for w := fromContext(ctx); w != nil; w = w.parent {
		if w.Active() {
			ws = append(ws, w)
		}
	}

	snaps := make([]callctx.Snapshot, len(ws))
	names := make([]string, 0, len(ws))
	for i := len(ws) - 1; i >= 0; i-- {
		snaps[i] = snapshot(ws[i].src)
		if n := snaps[i].Name; n != "" {
			names = append(names, n)
		}
	}
	f.CallContext = strings.Join(names, `\`)
	if len(ws) > 0 {
		f.Originating = snaps[0]
	}

	entry := log.G(ctx).WithFields(logrus.Fields{
		log.CodeKey:        f.Code.String(),
		log.FailureIDKey:   f.ID,
		log.CallContextKey: f.CallContext,
		"location":         f.Location.String(),
	})
	if f.Err != nil {
		entry = entry.WithError(f.Err)
	}
	entry.WithField("watchers", len(ws)).Debug(f.Message)

	if len(ws) == 0 {
		if cb := fallback.Load(); cb != nil {
			(*cb).NotifyFailure(f)
		}
		return
	}

	for i, w := range ws {
		c := *f
		c.Current = snaps[i]
		w.cb.NotifyFailure(&c)
	}
}

// ThreadWatcher is a [Watcher] that owns its call context.
//
// It is returned by operations that continue a unit of work on the calling goroutine, and must be
// closed when that work completes.
type ThreadWatcher struct {
	w  *Watcher
	cc *callctx.Info
}

// WatchThread installs a watcher with a new call context named name.
func WatchThread(ctx context.Context, cb Callback, name string) (context.Context, *ThreadWatcher) {
	return WatchThreadWith(ctx, cb, callctx.New(name))
}

// WatchThreadWith installs a watcher that takes ownership of cc.
func WatchThreadWith(ctx context.Context, cb Callback, cc *callctx.Info) (context.Context, *ThreadWatcher) {
	ctx, w := Watch(ctx, cb, cc)
	return ctx, &ThreadWatcher{w: w, cc: cc}
}

func (t *ThreadWatcher) CallContext() *callctx.Info { return t.cc }

func (t *ThreadWatcher) SetMessage(msg string) { t.cc.SetMessage(msg) }

func (t *ThreadWatcher) SetMessagef(format string, args ...any) { t.cc.SetMessagef(format, args...) }

func (t *ThreadWatcher) SetMessageCopy(msg string) { t.cc.SetMessageCopy(msg) }

// Active returns true until the watcher is closed.
func (t *ThreadWatcher) Active() bool { return t != nil && t.w.Active() }

// Close stops the watcher and releases its call context. Safe to call multiple times.
func (t *ThreadWatcher) Close() {
	if t == nil || !t.w.Active() {
		return
	}
	t.w.Stop()
	t.cc.Release()
}
