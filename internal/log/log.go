// Package log wraps [github.com/containerd/log] with the field names and helpers used when
// tracing activities.
package log

import (
	"context"

	"github.com/containerd/log"
	"github.com/sirupsen/logrus"
)

// logrus field names
const (
	ActivityIDKey        = "activityID"
	RelatedActivityIDKey = "relatedActivityID"
	ActivityNameKey      = "activityName"
	ProviderKey          = "provider"
	EventKey             = "event"
	CodeKey              = "hresult"
	FailureIDKey         = "failureID"
	CallContextKey       = "callContext"
)

// G returns the logger stored in ctx, or the standard logger if there is none.
func G(ctx context.Context) *logrus.Entry {
	return log.G(ctx)
}

// L is the default logger entry.
var L = log.L

// WithFields returns a context whose logger carries the additional fields.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return log.WithLogger(ctx, G(ctx).WithFields(fields))
}

// WithField returns a context whose logger carries an additional field.
func WithField(ctx context.Context, k string, v any) context.Context {
	return log.WithLogger(ctx, G(ctx).WithField(k, v))
}
