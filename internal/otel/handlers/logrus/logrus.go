// This package provides error handlers for OTel and for event writers that output via logrus.
//
// [OTel error handler]: https://pkg.go.dev/go.opentelemetry.io/otel#ErrorHandler
package logrus

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/Microsoft/go-activity/internal/log"
	"github.com/Microsoft/go-activity/pkg/event"
)

// New creates a new [otel.ErrorHandler] to log errors raised during OTel instrument
// creation/processing/export.
func New(opts ...Option) otel.ErrorHandler {
	c := newConfig(opts)
	return otel.ErrorHandlerFunc(func(err error) {
		c.log(err, "OpenTelemetry error")
	})
}

// NewEventHandler creates a new [event.ErrorHandler] to log errors returned by event writers.
func NewEventHandler(opts ...Option) event.ErrorHandler {
	c := newConfig(opts)
	return func(err error) {
		c.log(err, "failed to write event")
	}
}

type Option func(*config)

type config struct {
	logger *logrus.Logger
	level  logrus.Level
	extra  logrus.Fields
}

func newConfig(opts []Option) *config {
	c := &config{
		logger: logrus.StandardLogger(),
		level:  logrus.ErrorLevel,
		extra:  make(logrus.Fields),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *config) log(err error, msg string) {
	// [WithFields] will create a copy of c.extra, so we don't need to worry about
	// copying it per call to prevent inadvertent modification
	c.logger.WithFields(c.extra).WithError(err).Log(c.level, msg)
}

// WithLogger specifies the logger to write to.
//
// The default is [logrus.StandardLogger].
func WithLogger(l *logrus.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithResource specifies an OTel [resource.Resource] to append to the error message.
func WithResource(rsc *resource.Resource) Option {
	attr := rsc.Attributes()
	m := make(map[string]any, len(attr))
	for _, kv := range attr {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return func(c *config) {
		if s := log.Format(context.Background(), m); s != "" {
			c.extra["otel.resource"] = s
		}
	}
}

// WithExtra specifies additional [logrus.Fields] to append to the error message.
func WithExtra(fields logrus.Fields) Option {
	return func(c *config) {
		for k, v := range fields {
			c.extra[k] = v
		}
	}
}

// WithLevel specifies the [logrus.Level] to use when writing errors.
//
// The default is [logrus.LevelError].
func WithLevel(l logrus.Level) Option {
	return func(c *config) {
		c.level = l
	}
}
