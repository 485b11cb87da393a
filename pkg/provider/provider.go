// Package provider implements named event providers, which own the [event.Writer] that activity
// and failure events are written to, and route failures that no activity observed.
package provider

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"unicode/utf16"

	"github.com/Microsoft/go-winio/pkg/guid"
	"github.com/sirupsen/logrus"

	"github.com/Microsoft/go-activity/internal/log"
	"github.com/Microsoft/go-activity/internal/otel/metric"
	"github.com/Microsoft/go-activity/pkg/event"
	"github.com/Microsoft/go-activity/pkg/failure"
)

// ErrEmptyName is returned when creating a provider without a name.
var ErrEmptyName = errors.New("empty provider name")

// ErrorReportedHook is called with failures that no activity observed.
//
// alreadyReported is true if the failure was already written with the telemetry keyword.
type ErrorReportedHook func(ctx context.Context, alreadyReported bool, f *failure.Failure)

// IDGenerator creates activity IDs. related is the zero GUID if the activity has no related
// activity.
type IDGenerator func(related guid.GUID) (guid.GUID, error)

// Provider is a named source of activity and failure events.
type Provider struct {
	name string
	id   guid.GUID

	sink      *event.Sink
	reporting atomic.Pointer[ErrorReporting]
	hook      ErrorReportedHook
	newID     IDGenerator
	fallback  bool
	closed    atomic.Bool

	log *logrus.Entry
}

var _ failure.Callback = (*Provider)(nil)

type config struct {
	id        guid.GUID
	w         event.Writer
	reporting ErrorReporting
	hook      ErrorReportedHook
	newID     IDGenerator
	fallback  bool
}

type Option func(*config) error

// WithWriter sets the writer that events are written to.
//
// The default is [event.Discard]. If the writer implements [io.Closer], it is closed when the
// provider is closed.
func WithWriter(w event.Writer) Option {
	return func(c *config) error {
		if w == nil {
			return event.ErrNoWriter
		}
		c.w = w
		return nil
	}
}

// WithID overrides the provider ID derived from its name.
func WithID(id guid.GUID) Option {
	return func(c *config) error {
		c.id = id
		return nil
	}
}

// WithErrorReporting sets how failures that no activity observed are written.
//
// The default is [ErrorReportingTelemetry].
func WithErrorReporting(r ErrorReporting) Option {
	return func(c *config) error {
		if _, ok := _reportingLookup[string(r)]; !ok {
			return fmt.Errorf("invalid error reporting type %q: %w", r, ErrUnknownErrorReporting)
		}
		c.reporting = r
		return nil
	}
}

// WithErrorReportedHook replaces the default handling of failures that no activity observed,
// which writes a [event.NameFallbackError] event according to the provider's [ErrorReporting].
func WithErrorReportedHook(h ErrorReportedHook) Option {
	return func(c *config) error {
		c.hook = h
		return nil
	}
}

// WithActivityIDGenerator sets the function used to create activity IDs.
//
// The default creates random (version 4) GUIDs.
func WithActivityIDGenerator(f IDGenerator) Option {
	return func(c *config) error {
		if f != nil {
			c.newID = f
		}
		return nil
	}
}

// WithFallbackReporting registers the provider as the process-wide receiver of failures that
// are reported while no watcher is active.
func WithFallbackReporting() Option {
	return func(c *config) error {
		c.fallback = true
		return nil
	}
}

// New creates a provider.
func New(name string, opts ...Option) (*Provider, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	c := &config{
		w:         event.Discard,
		reporting: ErrorReportingTelemetry,
		newID:     func(guid.GUID) (guid.GUID, error) { return guid.NewV4() },
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
	}

	if c.id == (guid.GUID{}) {
		id, err := IDFromName(name)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		c.id = id
	}

	sink, err := event.NewSink(name, c.w)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", name, err)
	}

	p := &Provider{
		name:     name,
		id:       c.id,
		sink:     sink,
		hook:     c.hook,
		newID:    c.newID,
		fallback: c.fallback,
		log: log.L.WithFields(logrus.Fields{
			log.ProviderKey: name,
			"providerID":    c.id.String(),
		}),
	}
	p.reporting.Store(&c.reporting)
	if p.hook == nil {
		p.hook = p.reportFallback
	}
	if p.fallback {
		failure.SetFallback(p)
	}
	p.log.Debug("created provider")
	return p, nil
}

// namespace for provider IDs derived from names
var providerNamespace = guid.GUID{
	Data1: 0x482c2db2,
	Data2: 0xc390,
	Data3: 0x47c8,
	Data4: [8]byte{0x87, 0xf8, 0x1a, 0x15, 0xbf, 0xc1, 0x30, 0xfb},
}

// IDFromName derives a stable provider ID from the provider name.
//
// The name is upper-cased and hashed as big-endian UTF-16 into a version 5 GUID.
func IDFromName(name string) (guid.GUID, error) {
	u := utf16.Encode([]rune(strings.ToUpper(name)))
	b := make([]byte, 2*len(u))
	for i, c := range u {
		binary.BigEndian.PutUint16(b[2*i:], c)
	}
	return guid.NewV5(providerNamespace, b)
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) ID() guid.GUID { return p.id }

// Sink returns the sink used to write the provider's events.
func (p *Provider) Sink() *event.Sink { return p.sink }

// Enabled returns true if events with the given level and keyword are written.
func (p *Provider) Enabled(l event.Level, k event.Keyword) bool {
	return p.sink.Enabled(l, k)
}

func (p *Provider) ErrorReporting() ErrorReporting { return *p.reporting.Load() }

func (p *Provider) SetErrorReporting(r ErrorReporting) {
	p.reporting.Store(&r)
}

// NewActivityID creates an ID for an activity.
//
// If the generator fails, the error is logged and the zero GUID is returned: failing to create an
// ID must not fail the operation being traced.
func (p *Provider) NewActivityID(related guid.GUID) guid.GUID {
	id, err := p.newID(related)
	if err != nil {
		p.log.WithError(err).Warning("failed to create activity ID")
		return guid.GUID{}
	}
	return id
}

// NotifyFailure handles a failure that no activity observed.
//
// Failures that were already written with the telemetry keyword are dropped.
func (p *Provider) NotifyFailure(f *failure.Failure) bool {
	if failure.WasAlreadyReported(f.ID) {
		return false
	}
	p.OnErrorReported(context.Background(), false, f)
	return true
}

// OnErrorReported passes a failure to the provider's [ErrorReportedHook].
func (p *Provider) OnErrorReported(ctx context.Context, alreadyReported bool, f *failure.Failure) {
	if p.closed.Load() {
		return
	}
	metric.Activity().Fallback(ctx, p.name, f.Code.String())
	p.hook(ctx, alreadyReported, f)
}

func (p *Provider) reportFallback(ctx context.Context, alreadyReported bool, f *failure.Failure) {
	if alreadyReported {
		return
	}
	switch p.ErrorReporting() {
	case ErrorReportingTelemetry:
		p.sink.FallbackError(ctx, f, event.KeywordTelemetry)
	case ErrorReportingTraceLogging:
		p.sink.FallbackError(ctx, f, 0)
	default:
	}
}

// Info writes a verbose [event.NameInfo] message event. The message is only formatted if the
// event is enabled.
func (p *Provider) Info(ctx context.Context, format string, args ...any) {
	p.message(ctx, event.NameInfo, event.LevelVerbose, format, args...)
}

// Error writes an [event.NameError] message event. The message is only formatted if the event
// is enabled.
func (p *Provider) Error(ctx context.Context, format string, args ...any) {
	p.message(ctx, event.NameError, event.LevelError, format, args...)
}

func (p *Provider) message(ctx context.Context, name string, l event.Level, format string, args ...any) {
	if !p.Enabled(l, 0) {
		return
	}
	p.sink.Message(ctx, name, l, 0, fmt.Sprintf(format, args...))
}

// WatchCurrentThread installs a watcher that sends failures reported with the returned context to
// the provider's [ErrorReportedHook]. The watcher must be closed when the work completes.
func (p *Provider) WatchCurrentThread(ctx context.Context, name string) (context.Context, *failure.ThreadWatcher) {
	return failure.WatchThread(ctx, p, name)
}

// WatchCurrentThreadf is like [Provider.WatchCurrentThread], and sets the formatted call
// context message.
func (p *Provider) WatchCurrentThreadf(ctx context.Context, name, format string, args ...any) (context.Context, *failure.ThreadWatcher) {
	ctx, tw := failure.WatchThread(ctx, p, name)
	tw.SetMessagef(format, args...)
	return ctx, tw
}

// Close stops the provider from writing events and receiving fallback failures.
// If the writer implements [io.Closer], it is closed.
func (p *Provider) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	if p.fallback {
		failure.RemoveFallback(p)
	}
	p.sink.Close()
	p.log.Debug("closed provider")
	if c, ok := p.sink.Writer().(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close provider %q writer: %w", p.name, err)
		}
	}
	return nil
}
