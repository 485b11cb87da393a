// Package eventtest provides an in-memory [event.Writer] for tests.
package eventtest

import (
	"context"
	"sync"

	"github.com/Microsoft/go-activity/pkg/event"
)

// Recorder is an [event.Writer] that keeps a copy of every event written to it.
//
// The zero value records all events.
type Recorder struct {
	// MaxLevel, if non-zero, disables events with a higher level.
	MaxLevel event.Level

	mu     sync.Mutex
	events []event.Event
}

var _ event.Writer = (*Recorder)(nil)

func (r *Recorder) Enabled(l event.Level, _ event.Keyword) bool {
	return r.MaxLevel == 0 || l <= r.MaxLevel
}

func (r *Recorder) Write(_ context.Context, e *event.Event) error {
	c := *e
	c.Fields = append([]event.Field(nil), e.Fields...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, c)
	return nil
}

// Events returns a copy of the recorded events, in write order.
func (r *Recorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

// Named returns the recorded events with the given name.
func (r *Recorder) Named(name string) []event.Event {
	var es []event.Event
	for _, e := range r.Events() {
		if e.Name == name {
			es = append(es, e)
		}
	}
	return es
}

// Stops returns the recorded events with [event.OpcodeStop].
func (r *Recorder) Stops() []event.Event {
	var es []event.Event
	for _, e := range r.Events() {
		if e.Opcode == event.OpcodeStop {
			es = append(es, e)
		}
	}
	return es
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
