package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/Microsoft/go-activity/internal/log"
	hlogrus "github.com/Microsoft/go-activity/internal/otel/handlers/logrus"
	"github.com/Microsoft/go-activity/pkg/event"
)

// setupLogging configures the standard logger, and routes OTel and event writer errors to it.
func setupLogging(c logConfig) error {
	lvl, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stderr)

	switch c.Format {
	case formatJSON:
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: log.TimeFormat})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: log.TimeFormat})
	}

	otel.SetErrorHandler(hlogrus.New())
	event.SetErrorHandler(hlogrus.NewEventHandler(hlogrus.WithLevel(logrus.WarnLevel)))
	return nil
}
