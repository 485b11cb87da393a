package logrus

import (
	"fmt"

	"github.com/sirupsen/logrus"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// LoggingLevelSampler samples spans only while the logger's level is at least lvl.
func LoggingLevelSampler(logger *logrus.Logger, lvl logrus.Level) tracesdk.Sampler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return levelSampler{logger: logger, lvl: lvl}
}

type levelSampler struct {
	logger *logrus.Logger
	lvl    logrus.Level
}

func (s levelSampler) ShouldSample(p tracesdk.SamplingParameters) tracesdk.SamplingResult {
	d := tracesdk.Drop
	if s.logger.IsLevelEnabled(s.lvl) {
		d = tracesdk.RecordAndSample
	}
	return tracesdk.SamplingResult{
		Decision:   d,
		Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
	}
}

func (s levelSampler) Description() string {
	return fmt.Sprintf("LoggingLevelSampler{%s}", s.lvl)
}
