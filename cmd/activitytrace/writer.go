package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"

	actotel "github.com/Microsoft/go-activity/internal/otel"
	elogrus "github.com/Microsoft/go-activity/internal/otel/exporters/logrus"
	"github.com/Microsoft/go-activity/pkg/event"
	"github.com/Microsoft/go-activity/pkg/event/writers/jsonwriter"
	wlogrus "github.com/Microsoft/go-activity/pkg/event/writers/logrus"
	wotel "github.com/Microsoft/go-activity/pkg/event/writers/otel"
)

type shutdownFunc func(context.Context) error

func nopShutdown(context.Context) error { return nil }

func closer(w event.Writer) shutdownFunc {
	c, ok := w.(io.Closer)
	if !ok {
		return nopShutdown
	}
	return func(context.Context) error { return c.Close() }
}

// newWriter creates the event writer described by c. Output that is not written to a file goes
// to stdout.
//
// The returned function closes the writer, and releases anything else it needs, such as an OTel
// tracer provider.
func newWriter(c *config, stdout io.Writer) (event.Writer, shutdownFunc, error) {
	lvl, err := c.level()
	if err != nil {
		return nil, nil, err
	}

	switch c.Writer.Type {
	case writerJSON:
		k, err := c.keywords()
		if err != nil {
			return nil, nil, err
		}
		out := stdout
		if p := c.Writer.Path; p != "" && p != "-" {
			f, err := os.Create(p)
			if err != nil {
				return nil, nil, fmt.Errorf("create event file: %w", err)
			}
			out = f
		} else {
			// closing the writer must not close stdout
			out = struct{ io.Writer }{out}
		}
		w, err := jsonwriter.New(out, jsonwriter.WithLevel(lvl), jsonwriter.WithKeywords(k))
		if err != nil {
			return nil, nil, err
		}
		return w, closer(w), nil

	case writerLogrus:
		return wlogrus.New(wlogrus.WithContextLogger()), nopShutdown, nil

	case writerOTel:
		l := logrus.StandardLogger()
		shutdown, err := actotel.InitializeProvider(
			tracesdk.WithSyncer(elogrus.New(l)),
			tracesdk.WithSampler(elogrus.LoggingLevelSampler(l, wlogrus.Level(lvl))),
			tracesdk.WithResource(actotel.DefaultResource(appName, "")),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize tracer provider: %w", err)
		}
		return wotel.New(wotel.WithLevel(lvl)), shutdown, nil

	case writerETW:
		w, err := newETWWriter(c.Provider.Name)
		if err != nil {
			return nil, nil, err
		}
		return w, closer(w), nil
	}
	return nil, nil, fmt.Errorf("%w: %q", errUnknownWriter, c.Writer.Type)
}
