package sync

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLazyConcurrentGet(t *testing.T) {
	const n = 64

	var calls atomic.Int32
	start := make(chan struct{})
	l := NewLazy(func() (*int, error) {
		calls.Add(1)
		// widen the window for racing callers
		time.Sleep(10 * time.Millisecond)
		v := 7
		return &v, nil
	})

	got := make([]*int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			v, err := l.Get()
			if err != nil {
				t.Errorf("get %d: %v", i, err)
			}
			got[i] = v
		}()
	}
	close(start)
	wg.Wait()

	if c := calls.Load(); c != 1 {
		t.Fatalf("initializer ran %d times, wanted 1", c)
	}
	for i, v := range got {
		if v != got[0] {
			t.Fatalf("caller %d got instance %p, wanted %p", i, v, got[0])
		}
	}
}

func TestLazyErrorRetries(t *testing.T) {
	errInit := errors.New("init failed")
	fail := true
	l := NewLazy(func() (string, error) {
		if fail {
			return "", errInit
		}
		return "ok", nil
	})

	if _, err := l.Get(); !errors.Is(err, errInit) {
		t.Fatalf("got error %v, wanted %v", err, errInit)
	}
	if l.Initialized() {
		t.Fatal("lazy should not be initialized after a failed initializer")
	}

	fail = false
	v, err := l.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "ok" {
		t.Fatalf("got %q, wanted %q", v, "ok")
	}
}

func TestLazyPanicResets(t *testing.T) {
	var calls int
	l := NewLazy(func() (int, error) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return calls, nil
	})

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected initializer panic to propagate")
			}
		}()
		_, _ = l.Get()
	}()

	v, err := l.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != 2 {
		t.Fatalf("got %d, wanted 2", v)
	}
}

func TestLazyCloseWaitsForInit(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	l := NewLazy(func() (int, error) {
		close(entered)
		<-release
		return 1, nil
	})

	go func() { _, _ = l.Get() }()
	<-entered

	var destroyed atomic.Int32
	closed := make(chan struct{})
	go func() {
		l.Close(func(int) { destroyed.Add(1) })
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("close returned while construction was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-closed

	if d := destroyed.Load(); d != 1 {
		t.Fatalf("destroy called %d times, wanted 1", d)
	}
	if _, err := l.Get(); !errors.Is(err, ErrClosed) {
		t.Fatalf("got error %v, wanted %v", err, ErrClosed)
	}

	// idempotent
	l.Close(func(int) { destroyed.Add(1) })
	if d := destroyed.Load(); d != 1 {
		t.Fatalf("destroy called %d times after second close, wanted 1", d)
	}
}
