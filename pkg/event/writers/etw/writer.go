//go:build windows

package etw

import (
	"context"
	"errors"
	"fmt"

	"github.com/Microsoft/go-winio/pkg/etw"
	"github.com/Microsoft/go-winio/pkg/guid"

	"github.com/Microsoft/go-activity/pkg/event"
)

// ErrNoProvider is returned when creating a writer without an ETW provider.
var ErrNoProvider = errors.New("no ETW registered provider")

// Writer writes events to an ETW provider.
type Writer struct {
	provider      *etw.Provider
	closeProvider bool // if the provider is owned by the writer
}

var _ event.Writer = (*Writer)(nil)

type Option func(*Writer) error

// WithNewETWProvider registers a new ETW provider for the writer to use.
// The provider will be closed when the writer is closed.
//
// If id is the zero GUID, the provider ID is derived from the name.
func WithNewETWProvider(name string, id guid.GUID) Option {
	return func(w *Writer) error {
		var opts []etw.ProviderOpt
		if id != (guid.GUID{}) {
			opts = append(opts, etw.WithID(id))
		}
		p, err := etw.NewProviderWithOptions(name, opts...)
		if err != nil {
			return fmt.Errorf("register ETW provider %q: %w", name, err)
		}
		w.provider = p
		w.closeProvider = true
		return nil
	}
}

// WithExistingETWProvider configures the writer to use an existing ETW provider.
// The provider will not be closed when the writer is closed.
func WithExistingETWProvider(p *etw.Provider) Option {
	return func(w *Writer) error {
		w.provider = p
		w.closeProvider = false
		return nil
	}
}

func New(opts ...Option) (*Writer, error) {
	w := &Writer{}
	for _, o := range opts {
		if err := o(w); err != nil {
			return nil, err
		}
	}
	if w.provider == nil {
		return nil, ErrNoProvider
	}
	return w, nil
}

// Enabled returns true if an ETW session is listening for the level and keyword.
func (w *Writer) Enabled(l event.Level, k event.Keyword) bool {
	p := w.provider
	return p != nil && p.IsEnabledForLevelAndKeywords(etw.Level(l), uint64(k))
}

func (w *Writer) Write(_ context.Context, e *event.Event) error {
	p := w.provider
	if p == nil {
		return fmt.Errorf("write event %s: %w", e.Name, ErrNoProvider)
	}

	opts := make([]etw.EventOpt, 0, 5)
	opts = append(opts,
		etw.WithLevel(etw.Level(e.Level)),
		etw.WithKeyword(uint64(e.Keyword)),
	)
	switch e.Opcode {
	case event.OpcodeStart:
		opts = append(opts, etw.WithOpcode(etw.OpcodeStart))
	case event.OpcodeStop:
		opts = append(opts, etw.WithOpcode(etw.OpcodeStop))
	default:
	}
	if e.ActivityID != (guid.GUID{}) {
		opts = append(opts, etw.WithActivityID(e.ActivityID))
	}
	if e.RelatedActivityID != (guid.GUID{}) {
		opts = append(opts, etw.WithRelatedActivityID(e.RelatedActivityID))
	}

	fields := make([]etw.FieldOpt, 0, len(e.Fields))
	for _, f := range e.Fields {
		fields = append(fields, etw.SmartField(f.Name, value(f.Value)))
	}

	if err := p.WriteEvent(e.Name, opts, fields); err != nil {
		return fmt.Errorf("write ETW event %s (%s): %w", e.Name, e.ActivityID, err)
	}
	return nil
}

// Close unregisters the ETW provider, if it is owned by the writer.
func (w *Writer) Close() (err error) {
	if w.provider == nil {
		return nil
	}
	if w.closeProvider {
		err = w.provider.Close()
	}
	w.provider = nil
	return err
}
