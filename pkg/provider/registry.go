package provider

import (
	"errors"
	"sync"

	isync "github.com/Microsoft/go-activity/internal/sync"
)

// Lazy is a provider that is created on first use.
//
// Concurrent callers of [Lazy.Get] block until the provider is created, and only one provider is
// ever created. If creation fails, the next call tries again.
type Lazy struct {
	l *isync.Lazy[*Provider]
}

func NewLazy(name string, opts ...Option) *Lazy {
	return &Lazy{
		l: isync.NewLazy(func() (*Provider, error) {
			return New(name, opts...)
		}),
	}
}

// Get returns the provider, creating it if needed.
func (l *Lazy) Get() (*Provider, error) {
	return l.l.Get()
}

// Close closes the provider, if it was created. Get returns an error afterwards.
func (l *Lazy) Close() (err error) {
	l.l.Close(func(p *Provider) {
		err = p.Close()
	})
	return err
}

var registry = struct {
	mu sync.Mutex
	m  map[string]*Lazy
}{
	m: make(map[string]*Lazy),
}

// Instance returns the process-wide provider with the given name, creating it on first use.
//
// The options are only used by the call that registers the name; later calls share the
// provider created with the first caller's options.
func Instance(name string, opts ...Option) (*Provider, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	registry.mu.Lock()
	l, ok := registry.m[name]
	if !ok {
		l = NewLazy(name, opts...)
		registry.m[name] = l
	}
	registry.mu.Unlock()

	// construct outside of the registry lock so that slow writers do not block other names
	return l.Get()
}

// Shutdown closes every provider created by [Instance] and clears the registry.
func Shutdown() error {
	registry.mu.Lock()
	ls := registry.m
	registry.m = make(map[string]*Lazy)
	registry.mu.Unlock()

	var errs []error
	for _, l := range ls {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
