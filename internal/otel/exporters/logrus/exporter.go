// Package logrus provides an OTel span exporter and sampler backed by logrus.
package logrus

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Microsoft/go-activity/internal/log"
)

type exporter struct {
	logger *logrus.Logger
}

var _ tracesdk.SpanExporter = (*exporter)(nil)

// New returns a [tracesdk.SpanExporter] that writes each span as a logrus entry.
//
// Span attributes, trace and span IDs, and timings are added as fields. The entry is written at
// [logrus.InfoLevel], or [logrus.ErrorLevel] (with the status description as the error) when the
// span's status is [codes.Error]. Span events are logged as separate entries at
// [logrus.DebugLevel].
func New(logger *logrus.Logger) tracesdk.SpanExporter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &exporter{logger: logger}
}

func (e *exporter) ExportSpans(ctx context.Context, spans []tracesdk.ReadOnlySpan) error {
	for _, s := range spans {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.export(s)
	}
	return nil
}

func (e *exporter) export(s tracesdk.ReadOnlySpan) {
	if n := s.DroppedAttributes(); n > 0 {
		e.logger.WithFields(logrus.Fields{
			"name":          s.Name(),
			"dropped":       n,
			"maxAttributes": len(s.Attributes()),
		}).Warning("span had dropped attributes")
	}

	// Add fields in batch, rather than incrementally to avoid reallocating
	fs := make(logrus.Fields, len(s.Attributes())+8)
	for _, kv := range s.Attributes() {
		fs[string(kv.Key)] = kv.Value.AsInterface()
	}
	sc := s.SpanContext()
	fs["traceID"] = sc.TraceID().String()
	fs["spanID"] = sc.SpanID().String()
	if p := s.Parent(); p.IsValid() {
		fs["parentSpanID"] = p.SpanID().String()
	}
	fs["startTime"] = log.FormatTime(s.StartTime())
	fs["endTime"] = log.FormatTime(s.EndTime())
	fs["duration"] = s.EndTime().Sub(s.StartTime()).String()
	fs["name"] = s.Name()
	fs["spanKind"] = s.SpanKind().String()

	level := logrus.InfoLevel
	if st := s.Status(); st.Code == codes.Error {
		level = logrus.ErrorLevel
		fs[logrus.ErrorKey] = st.Description
	}

	entry := e.logger.WithFields(fs)
	entry.Time = s.StartTime()
	entry.Log(level, "Span")

	for _, ev := range s.Events() {
		efs := make(logrus.Fields, len(ev.Attributes)+2)
		for _, kv := range ev.Attributes {
			efs[string(kv.Key)] = kv.Value.AsInterface()
		}
		efs["spanID"] = sc.SpanID().String()
		efs["name"] = ev.Name
		ee := e.logger.WithFields(efs)
		ee.Time = ev.Time
		ee.Debug("Span event")
	}
}

func (e *exporter) Shutdown(ctx context.Context) error {
	return ctx.Err()
}
