package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Microsoft/go-activity/internal/log"
	actotel "github.com/Microsoft/go-activity/internal/otel"
	"github.com/Microsoft/go-activity/internal/otel/metric"
	"github.com/Microsoft/go-activity/pkg/event"
	"github.com/Microsoft/go-activity/pkg/event/writers/jsonwriter"
	"github.com/Microsoft/go-activity/pkg/provider"
)

var errArgs = errors.New("wrong number of arguments")

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run the activities described in a scenario file, and summarize the events written",
	ArgsUsage: "SCENARIO.yaml",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    configFlagName,
			Aliases: []string{"c"},
			Usage:   "TOML configuration `FILE`",
		},
		&cli.BoolFlag{
			Name:  metricsFlagName,
			Usage: "print activity metrics after running the scenario (overrides the configuration)",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("%w: expected a scenario file", errArgs)
		}
		cfg, err := loadConfig(c.String(configFlagName))
		if err != nil {
			return err
		}
		if c.IsSet(metricsFlagName) {
			cfg.Metrics = c.Bool(metricsFlagName)
		}
		if err := setupLogging(cfg.Log); err != nil {
			return err
		}
		s, err := loadScenario(c.Args().First())
		if err != nil {
			return err
		}
		return run(c.Context, cfg, s, c.App.Writer, c.App.ErrWriter)
	},
}

// run executes s with the provider described by cfg. Events go to stdout (unless written
// elsewhere), and the summary and metrics go to stderr.
func run(ctx context.Context, cfg *config, s *scenario, stdout, stderr io.Writer) (err error) {
	var reader *sdkmetric.ManualReader
	if cfg.Metrics {
		reader = sdkmetric.NewManualReader()
		shutdownMetrics, merr := metric.InitializeProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(actotel.DefaultResource(appName, "")),
		)
		if merr != nil {
			return fmt.Errorf("initialize meter provider: %w", merr)
		}
		defer func() {
			if err2 := shutdownMetrics(context.Background()); err == nil {
				err = err2
			}
		}()
	}

	w, shutdown, err := newWriter(cfg, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err2 := shutdown(context.Background()); err == nil {
			err = err2
		}
	}()

	reporting, err := cfg.errorReporting()
	if err != nil {
		return err
	}
	sum := newSummary()
	opts := []provider.Option{
		provider.WithWriter(event.Tee(w, sum)),
		provider.WithErrorReporting(reporting),
	}
	if cfg.fallback() {
		opts = append(opts, provider.WithFallbackReporting())
	}
	p, err := provider.Instance(cfg.Provider.Name, opts...)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}
	log.G(ctx).WithFields(logrus.Fields{
		log.ProviderKey: p.Name(),
		"providerID":    p.ID().String(),
	}).Debug("created provider")

	runErr := runScenario(ctx, p, s)
	if err := provider.Shutdown(); err != nil {
		log.G(ctx).WithError(err).Warning("failed to close provider")
	}
	if runErr != nil {
		return runErr
	}

	if err := sum.print(stderr); err != nil {
		return err
	}
	if reader != nil {
		return dumpMetrics(ctx, stderr, reader)
	}
	return nil
}

var decodeCommand = &cli.Command{
	Name:      "decode",
	Usage:     "Summarize the activities in a JSON event file",
	ArgsUsage: "FILE",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("%w: expected an event file", errArgs)
		}
		f, err := os.Open(c.Args().First())
		if err != nil {
			return err
		}
		defer f.Close()

		sum, err := decode(f)
		if err != nil {
			return err
		}
		return sum.print(c.App.Writer)
	},
}

func decode(r io.Reader) (*summary, error) {
	sum := newSummary()
	d := jsonwriter.NewDecoder(r)
	for {
		rec, err := d.Next()
		if errors.Is(err, io.EOF) {
			return sum, nil
		} else if err != nil {
			return nil, err
		}
		sum.add(&rec)
	}
}

var providerIDCommand = &cli.Command{
	Name:      "provider-id",
	Usage:     "Print the provider ID derived from a provider name",
	ArgsUsage: "NAME",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("%w: expected a provider name", errArgs)
		}
		id, err := provider.IDFromName(c.Args().First())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.App.Writer, id.String())
		return err
	},
}

// dumpMetrics prints every data point collected by r, one per line.
func dumpMetrics(ctx context.Context, w io.Writer, r *sdkmetric.ManualReader) error {
	var rm metricdata.ResourceMetrics
	if err := r.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch d := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range d.DataPoints {
					fmt.Fprintf(w, "%s{%s} %d\n", m.Name, formatAttributes(dp.Attributes), dp.Value)
				}
			case metricdata.Histogram[float64]:
				for _, dp := range d.DataPoints {
					fmt.Fprintf(w, "%s{%s} count=%d sum=%g\n", m.Name, formatAttributes(dp.Attributes), dp.Count, dp.Sum)
				}
			}
		}
	}
	return nil
}

func formatAttributes(s attribute.Set) string {
	kvs := make([]string, 0, s.Len())
	for it := s.Iter(); it.Next(); {
		kv := it.Attribute()
		kvs = append(kvs, string(kv.Key)+"="+kv.Value.Emit())
	}
	return strings.Join(kvs, ",")
}
