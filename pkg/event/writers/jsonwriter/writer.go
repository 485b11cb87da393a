// Package jsonwriter provides an [event.Writer] that writes events as JSON lines.
package jsonwriter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Microsoft/go-activity/pkg/event"
)

var errNilWriter = errors.New("nil writer")

// Writer writes one JSON-encoded [Record] per line.
type Writer struct {
	level    event.Level
	keywords event.Keyword

	mu sync.Mutex
	w  io.Writer
	j  *json.Encoder
}

var _ event.Writer = (*Writer)(nil)

type Option func(*Writer)

// WithLevel sets the most verbose level that is written.
//
// The default is [event.LevelVerbose].
func WithLevel(l event.Level) Option {
	return func(w *Writer) { w.level = l }
}

// WithKeywords restricts writing to events that have at least one of the keywords set.
// Events with no keywords are always written.
//
// The default (0) writes all events.
func WithKeywords(k event.Keyword) Option {
	return func(w *Writer) { w.keywords = k }
}

// New returns a Writer that encodes events to w.
func New(w io.Writer, opts ...Option) (*Writer, error) {
	if w == nil {
		return nil, errNilWriter
	}
	j := json.NewEncoder(w)
	j.SetEscapeHTML(false)
	j.SetIndent("", "")

	jw := &Writer{
		level: event.LevelVerbose,
		w:     w,
		j:     j,
	}
	for _, o := range opts {
		o(jw)
	}
	return jw, nil
}

func (w *Writer) Enabled(l event.Level, k event.Keyword) bool {
	if l > w.level {
		return false
	}
	return w.keywords == 0 || k == 0 || k&w.keywords != 0
}

func (w *Writer) Write(ctx context.Context, e *event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := FromEvent(e)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.j == nil {
		return fmt.Errorf("write event %s: %w", e.Name, errNilWriter)
	}
	if err := w.j.Encode(&r); err != nil {
		return fmt.Errorf("write event %s: %w", e.Name, err)
	}
	return nil
}

// Close stops writing events. The underlying [io.Writer] is closed if it is an [io.Closer].
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := w.w
	w.w = nil
	w.j = nil
	if c, ok := out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
