package activity

import (
	"context"
	"errors"
	"fmt"

	"github.com/Microsoft/go-activity/pkg/event"
	"github.com/Microsoft/go-activity/pkg/provider"
)

// ErrNoProvider is returned when creating a [Type] without a provider.
var ErrNoProvider = errors.New("no provider")

// Type describes a kind of activity: the events it writes and how it reports failures.
//
// Types are immutable and safe for concurrent use.
type Type struct {
	p                  *provider.Provider
	desc               event.Descriptor
	telemetryOnFailure bool
	fields             []event.Field
}

type TypeOption func(*Type)

// WithKeyword sets the keyword of the activity's events.
func WithKeyword(k event.Keyword) TypeOption {
	return func(t *Type) { t.desc.Keyword = k }
}

// WithLevel sets the level of the activity's events.
//
// The default is [event.LevelVerbose].
func WithLevel(l event.Level) TypeOption {
	return func(t *Type) { t.desc.Level = l }
}

// WithTelemetryOnFailure writes failures observed by the activity with the telemetry keyword, and
// writes an [event.NameActivityFailure] telemetry event if the activity finishes with a failure.
func WithTelemetryOnFailure() TypeOption {
	return func(t *Type) { t.telemetryOnFailure = true }
}

// WithStartFields adds fields to every start event of the activity.
//
// Fields may not use names reserved for event metadata, such as "keyword" or "level".
func WithStartFields(fields ...event.Field) TypeOption {
	return func(t *Type) { t.fields = append(t.fields, fields...) }
}

// NewType creates an activity type whose events are written by p.
func NewType(p *provider.Provider, name string, opts ...TypeOption) (*Type, error) {
	if p == nil {
		return nil, ErrNoProvider
	}
	t := &Type{
		p: p,
		desc: event.Descriptor{
			Name:  name,
			Level: event.LevelVerbose,
		},
	}
	for _, o := range opts {
		o(t)
	}
	if err := t.desc.Validate(t.fields...); err != nil {
		return nil, fmt.Errorf("activity type %q: %w", name, err)
	}
	return t, nil
}

// MustNewType is like [NewType] but panics on error. It is intended for package-level variables.
func MustNewType(p *provider.Provider, name string, opts ...TypeOption) *Type {
	t, err := NewType(p, name, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Type) Name() string { return t.desc.Name }

func (t *Type) Provider() *provider.Provider { return t.p }

func (t *Type) Descriptor() event.Descriptor { return t.desc }

func (t *Type) TelemetryOnFailure() bool { return t.telemetryOnFailure }

// Enabled returns true if the activity's events are written.
func (t *Type) Enabled() bool {
	return t.p.Enabled(t.desc.Level, t.desc.Keyword)
}

// New returns an activity of this type that has not been started.
func (t *Type) New() *Activity {
	return &Activity{owned: newData(t)}
}

// Start creates and starts an activity. See [Activity.Start].
func (t *Type) Start(ctx context.Context, fields ...event.Field) (context.Context, *Activity) {
	a := t.New()
	return a.Start(ctx, fields...), a
}

// StartRelated creates and starts an activity related to the one running in ctx.
// See [Activity.StartRelated].
func (t *Type) StartRelated(ctx context.Context, fields ...event.Field) (context.Context, *Activity) {
	a := t.New()
	return a.StartRelated(ctx, fields...), a
}
