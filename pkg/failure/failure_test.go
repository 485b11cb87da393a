package failure

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/google/go-cmp/cmp"

	"github.com/Microsoft/go-activity/pkg/callctx"
)

type recorder struct {
	name     string
	failures []*Failure
}

func (r *recorder) NotifyFailure(f *Failure) bool {
	r.failures = append(r.failures, f)
	return true
}

func TestCodeString(t *testing.T) {
	for _, tt := range []struct {
		code Code
		want string
	}{
		{OK, "0x00000000"},
		{CodeFail, "0x80004005"},
		{CodeUnhandledException, "0x8007023E"},
		{CodeNotFound, "0x80070490"},
		{Code(5), "0x00000005"},
	} {
		if s := tt.code.String(); s != tt.want {
			t.Errorf("got %q, wanted %q", s, tt.want)
		}
		c, err := ParseCode(tt.want)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.want, err)
		}
		if c != tt.code {
			t.Errorf("parsed %q as %v, wanted %v", tt.want, c, tt.code)
		}
	}
}

func TestParseCodeName(t *testing.T) {
	c, err := ParseCode("e_fail")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c != CodeFail {
		t.Fatalf("got %v, wanted %v", c, CodeFail)
	}
	if _, err := ParseCode("not a code"); err == nil {
		t.Fatal("expected error parsing invalid code")
	}
}

func TestFromWin32(t *testing.T) {
	// ERROR_UNHANDLED_EXCEPTION
	if c := FromWin32(574); c != CodeUnhandledException {
		t.Fatalf("got %v, wanted %v", c, CodeUnhandledException)
	}
	if c := FromWin32(0); c != OK {
		t.Fatalf("got %v, wanted %v", c, OK)
	}
	if c := FromWin32(0x80004005); c != CodeFail {
		t.Fatalf("got %v, wanted %v", c, CodeFail)
	}
}

func TestCodeOf(t *testing.T) {
	for _, tt := range []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{errors.New("plain"), CodeFail},
		{New(Code(5), "five"), Code(5)},
		{fmt.Errorf("wrapped: %w", New(CodeAccessDenied, "denied")), CodeAccessDenied},
		{fmt.Errorf("missing: %w", errdefs.ErrNotFound), CodeNotFound},
		{fs.ErrExist, CodeAlreadyExists},
		{context.Canceled, CodeCancelled},
		{context.DeadlineExceeded, CodeTimeout},
		{errdefs.ErrNotImplemented, CodeNotImplemented},
	} {
		if c := CodeOf(tt.err); c != tt.want {
			t.Errorf("CodeOf(%v) = %v, wanted %v", tt.err, c, tt.want)
		}
	}
}

func TestReportWithoutWatcherUsesFallback(t *testing.T) {
	r := &recorder{}
	prev := SetFallback(r)
	t.Cleanup(func() { SetFallback(prev) })

	f := Report(context.Background(), CodeFail, "nobody is watching")
	if len(r.failures) != 1 {
		t.Fatalf("got %d fallback failures, wanted 1", len(r.failures))
	}
	if r.failures[0] != f {
		t.Fatal("fallback did not receive the reported failure")
	}
	if !strings.HasSuffix(f.Location.File, "failure_test.go") {
		t.Fatalf("got location %v, wanted this file", f.Location)
	}
	if f.Type != TypeLog {
		t.Fatalf("got type %v, wanted %v", f.Type, TypeLog)
	}
}

func TestNestedWatchers(t *testing.T) {
	prev := SetFallback(CallbackFunc(func(*Failure) bool {
		t.Error("fallback called while watchers are active")
		return false
	}))
	t.Cleanup(func() { SetFallback(prev) })

	var order []string
	outer, inner := &recorder{name: "outer"}, &recorder{name: "inner"}
	cb := func(r *recorder) Callback {
		return CallbackFunc(func(f *Failure) bool {
			order = append(order, r.name)
			return r.NotifyFailure(f)
		})
	}

	outerCC := callctx.New("Outer")
	ctx, ow := Watch(context.Background(), cb(outer), outerCC)
	innerCC := callctx.New("Inner")
	innerCC.SetMessage("doing work")
	ctx, iw := Watch(ctx, cb(inner), innerCC)

	_ = Check(ctx, New(Code(5), "five"))

	if diff := cmp.Diff([]string{"inner", "outer"}, order); diff != "" {
		t.Fatalf("notification order mismatch (-want +got):\n%s", diff)
	}

	fi, fo := inner.failures[0], outer.failures[0]
	if fi.ID != fo.ID {
		t.Fatalf("watchers received different failures: %d and %d", fi.ID, fo.ID)
	}
	if fi.CallContext != `Outer\Inner` {
		t.Fatalf("got call context %q, wanted %q", fi.CallContext, `Outer\Inner`)
	}
	want := callctx.Snapshot{ID: innerCC.ID(), Name: "Inner", Message: "doing work"}
	if diff := cmp.Diff(want, fi.Originating); diff != "" {
		t.Fatalf("originating context mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, fi.Current); diff != "" {
		t.Fatalf("inner current context mismatch (-want +got):\n%s", diff)
	}
	if fo.Current.Name != "Outer" {
		t.Fatalf("got outer current context %q, wanted %q", fo.Current.Name, "Outer")
	}
	if !strings.HasSuffix(fi.Location.File, "failure_test.go") || fi.Location.Function == "" {
		t.Fatalf("location was not taken from the error stack: %+v", fi.Location)
	}

	// stopping the inner watcher routes failures to the outer one only
	iw.Stop()
	iw.Stop()
	order = nil
	Report(ctx, CodeFail, "second")
	if diff := cmp.Diff([]string{"outer"}, order); diff != "" {
		t.Fatalf("notification order mismatch (-want +got):\n%s", diff)
	}

	ow.Stop()
	if Watching(ctx) {
		t.Fatal("context still reports an active watcher")
	}
}

func TestCheckNil(t *testing.T) {
	r := &recorder{}
	ctx, w := Watch(context.Background(), r, nil)
	defer w.Stop()

	if err := Check(ctx, nil); err != nil {
		t.Fatalf("got %v, wanted nil", err)
	}
	if len(r.failures) != 0 {
		t.Fatalf("got %d failures, wanted 0", len(r.failures))
	}
}

func TestReportPanic(t *testing.T) {
	r := &recorder{}
	ctx, w := Watch(context.Background(), r, nil)
	defer w.Stop()

	func() {
		defer func() {
			if v := recover(); v != nil {
				ReportPanic(ctx, v)
			}
		}()
		panic("unexpected")
	}()

	if len(r.failures) != 1 {
		t.Fatalf("got %d failures, wanted 1", len(r.failures))
	}
	f := r.failures[0]
	if f.Code != CodeUnhandledException || f.Type != TypeException {
		t.Fatalf("got %v/%v, wanted %v/%v", f.Code, f.Type, CodeUnhandledException, TypeException)
	}
}

func TestThreadWatcher(t *testing.T) {
	base := &recorder{}
	ctx, tw := WatchThread(context.Background(), base, "Worker")
	tw.SetMessagef("item %d", 3)

	Report(ctx, Code(7), "bad item")
	if got := base.failures[0].Current.Message; got != "item 3" {
		t.Fatalf("got message %q, wanted %q", got, "item 3")
	}

	tw.Close()
	tw.Close()
	if tw.Active() {
		t.Fatal("watcher still active after close")
	}
	if tw.CallContext().Owned() {
		t.Fatal("call context buffer not released on close")
	}
}

func TestWasAlreadyReported(t *testing.T) {
	id := nextFailureID()
	if WasAlreadyReported(id) {
		t.Fatal("new id reported as already reported")
	}
	if !WasAlreadyReported(id) {
		t.Fatal("repeated id not reported as already reported")
	}
	if WasAlreadyReported(nextFailureID()) {
		t.Fatal("new id reported as already reported")
	}
}

func TestRemoveFallback(t *testing.T) {
	r, other := &recorder{}, &recorder{}
	prev := SetFallback(r)
	t.Cleanup(func() { SetFallback(prev) })

	if RemoveFallback(other) {
		t.Fatal("removed a callback that is not the fallback")
	}
	if !RemoveFallback(r) {
		t.Fatal("did not remove the fallback")
	}
	Report(context.Background(), CodeFail, "dropped")
	if len(r.failures) != 0 {
		t.Fatalf("removed fallback got %d failures", len(r.failures))
	}
}

func TestWatcherIn(t *testing.T) {
	base := context.Background()
	ctx, w := Watch(base, &recorder{}, nil)
	inner, _ := Watch(ctx, &recorder{}, nil)

	if !w.In(ctx) || !w.In(inner) {
		t.Fatal("watcher not found in its context chain")
	}
	if w.In(base) {
		t.Fatal("watcher found in the parent context")
	}
	var nw *Watcher
	if nw.In(ctx) {
		t.Fatal("nil watcher found in context")
	}
}
