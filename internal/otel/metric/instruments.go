package metric

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
)

// attribute keys
const (
	KeyProvider = attribute.Key("activity.provider")
	KeyActivity = attribute.Key("activity.name")
	KeyResult   = attribute.Key("activity.result")
	KeyOutcome  = attribute.Key("activity.outcome")
)

// Instruments are the activity lifecycle instruments.
//
// They are safe to create before a global [api.MeterProvider] is configured: the OTel global
// provider delegates to the configured provider once it is set.
type Instruments struct {
	started  api.Int64Counter
	stopped  api.Int64Counter
	inFlight api.Int64UpDownCounter
	duration api.Float64Histogram
	errors   api.Int64Counter
	fallback api.Int64Counter
}

// Activity returns the process-wide activity instruments.
var Activity = sync.OnceValue(func() *Instruments {
	// naming/format based on the OTel semantic convention guidance
	return &Instruments{
		started: Int64Counter("activity.started",
			api.WithDescription("number of activities started"),
			api.WithUnit("{activity}")),
		stopped: Int64Counter("activity.stopped",
			api.WithDescription("number of activities that emitted a terminal event"),
			api.WithUnit("{activity}")),
		inFlight: Int64UpDownCounter("activity.in_flight",
			api.WithDescription("number of activities started but not yet finished"),
			api.WithUnit("{activity}")),
		duration: Float64Histogram("activity.duration",
			api.WithDescription("time between an activity's start and terminal events"),
			api.WithUnit("s")),
		errors: Int64Counter("activity.errors",
			api.WithDescription("number of failures observed by running activities"),
			api.WithUnit("{failure}")),
		fallback: Int64Counter("activity.fallback_errors",
			api.WithDescription("number of failures not attributed to any activity"),
			api.WithUnit("{failure}")),
	}
})

func (i *Instruments) Started(ctx context.Context, provider, name string) {
	attrs := api.WithAttributes(KeyProvider.String(provider), KeyActivity.String(name))
	i.started.Add(ctx, 1, attrs)
	i.inFlight.Add(ctx, 1, attrs)
}

// Stopped records an activity finishing. outcome is "stopped" for an explicit stop, or
// "unhandled" when the activity was finalized by its last owner closing it.
func (i *Instruments) Stopped(ctx context.Context, provider, name, result, outcome string, d time.Duration) {
	i.inFlight.Add(ctx, -1, api.WithAttributes(KeyProvider.String(provider), KeyActivity.String(name)))
	attrs := api.WithAttributes(
		KeyProvider.String(provider),
		KeyActivity.String(name),
		KeyResult.String(result),
		KeyOutcome.String(outcome),
	)
	i.stopped.Add(ctx, 1, attrs)
	i.duration.Record(ctx, d.Seconds(), attrs)
}

func (i *Instruments) Error(ctx context.Context, provider, name, code string) {
	i.errors.Add(ctx, 1, api.WithAttributes(
		KeyProvider.String(provider),
		KeyActivity.String(name),
		KeyResult.String(code),
	))
}

func (i *Instruments) Fallback(ctx context.Context, provider, code string) {
	i.fallback.Add(ctx, 1, api.WithAttributes(
		KeyProvider.String(provider),
		KeyResult.String(code),
	))
}
