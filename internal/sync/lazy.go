package sync

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by [Lazy.Get] after the value has been closed.
var ErrClosed = errors.New("lazy value is closed")

type lazyState int32

const (
	lazyUninitialized lazyState = iota
	lazyInitializing
	lazyReady
	lazyClosed
)

// Lazy holds a value of type T that is constructed on first use.
//
// Unlike [sync.OnceValues], a failed construction (either an error or a panic) is not cached:
// the Lazy reverts to uninitialized, and the next caller of [Lazy.Get] runs the initializer again.
// Callers that race with an in-flight construction block until it completes.
type Lazy[T any] struct {
	state atomic.Int32

	mu   sync.Mutex
	cond *sync.Cond // signalled on every transition out of lazyInitializing

	v    T
	init func() (T, error)
}

// NewLazy returns a Lazy that will construct its value with f.
func NewLazy[T any](f func() (T, error)) *Lazy[T] {
	l := &Lazy[T]{init: f}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Get returns the constructed value, running the initializer if no prior call has succeeded.
//
// Only the caller that ran a failed initializer receives its error; parked callers retry.
func (l *Lazy[T]) Get() (T, error) {
	if lazyState(l.state.Load()) == lazyReady {
		return l.v, nil
	}
	return l.getSlow()
}

func (l *Lazy[T]) getSlow() (v T, err error) {
	l.mu.Lock()
	for {
		switch lazyState(l.state.Load()) {
		case lazyReady:
			v = l.v
			l.mu.Unlock()
			return v, nil
		case lazyClosed:
			l.mu.Unlock()
			return v, ErrClosed
		case lazyInitializing:
			l.cond.Wait()
			continue
		}

		// uninitialized: this caller runs the initializer outside the lock
		l.state.Store(int32(lazyInitializing))
		l.mu.Unlock()
		return l.construct()
	}
}

func (l *Lazy[T]) construct() (v T, err error) {
	done := false
	defer func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		defer l.cond.Broadcast()

		if !done || err != nil {
			l.state.Store(int32(lazyUninitialized))
			return
		}
		l.v = v
		l.state.Store(int32(lazyReady))
	}()

	v, err = l.init()
	done = true
	return v, err
}

// Initialized returns true if the value has been constructed and not yet closed.
func (l *Lazy[T]) Initialized() bool {
	return lazyState(l.state.Load()) == lazyReady
}

// Close marks the Lazy as closed, waiting for any in-flight construction to finish first.
// If a value was constructed, destroy (if non-nil) is called on it exactly once.
//
// Close is idempotent.
func (l *Lazy[T]) Close(destroy func(T)) {
	l.mu.Lock()
	for lazyState(l.state.Load()) == lazyInitializing {
		l.cond.Wait()
	}

	prev := lazyState(l.state.Swap(int32(lazyClosed)))
	v := l.v
	l.cond.Broadcast()
	l.mu.Unlock()

	if prev == lazyReady && destroy != nil {
		destroy(v)
	}
}
