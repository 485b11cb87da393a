package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/sirupsen/logrus"

	"github.com/Microsoft/go-activity/internal/option"
	"github.com/Microsoft/go-activity/pkg/event"
	"github.com/Microsoft/go-activity/pkg/provider"
)

// writer types
const (
	writerJSON   = "json"
	writerLogrus = "logrus"
	writerOTel   = "otel"
	writerETW    = "etw"
)

// log formats
const (
	formatText = "text"
	formatJSON = "json"
)

const defaultProviderName = "Microsoft.Go.ActivityTrace"

var errUnknownWriter = errors.New("unknown writer type")

type config struct {
	// Metrics dumps the activity metrics after running the scenario.
	Metrics bool `toml:"metrics"`

	Provider providerConfig `toml:"provider"`
	Writer   writerConfig   `toml:"writer"`
	Log      logConfig      `toml:"log"`
}

type providerConfig struct {
	Name           string `toml:"name"`
	ErrorReporting string `toml:"error_reporting"`
	// Fallback reports failures raised outside any activity. Defaults to true.
	Fallback option.Option[bool] `toml:"fallback"`
}

type writerConfig struct {
	Type string `toml:"type"`
	// Path is the output file of the json writer. Empty or "-" writes to stdout.
	Path     string `toml:"path"`
	Level    string `toml:"level"`
	Keywords string `toml:"keywords"`
}

type logConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func defaultConfig() *config {
	c := &config{}
	c.setDefaults()
	return c
}

// loadConfig reads the TOML configuration at path. An empty path returns the defaults.
func loadConfig(path string) (*config, error) {
	c := &config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

func (c *config) setDefaults() {
	if c.Provider.Name == "" {
		c.Provider.Name = defaultProviderName
	}
	if c.Provider.ErrorReporting == "" {
		c.Provider.ErrorReporting = provider.ErrorReportingTelemetry.String()
	}
	if option.IsNone(c.Provider.Fallback) {
		c.Provider.Fallback = option.Some(true)
	}
	if c.Writer.Type == "" {
		c.Writer.Type = writerJSON
	}
	if c.Writer.Level == "" {
		c.Writer.Level = event.LevelVerbose.String()
	}
	if c.Log.Level == "" {
		c.Log.Level = logrus.InfoLevel.String()
	}
	if c.Log.Format == "" {
		c.Log.Format = formatText
	}
}

func (c *config) validate() error {
	if _, err := c.errorReporting(); err != nil {
		return err
	}
	switch c.Writer.Type {
	case writerJSON, writerLogrus, writerOTel, writerETW:
	default:
		return fmt.Errorf("%w: %q", errUnknownWriter, c.Writer.Type)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	if _, err := c.keywords(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case formatText, formatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

func (c *config) fallback() bool {
	return option.UnwrapOr(c.Provider.Fallback, true)
}

func (c *config) errorReporting() (provider.ErrorReporting, error) {
	return provider.ParseErrorReporting(c.Provider.ErrorReporting)
}

func (c *config) level() (event.Level, error) {
	return event.ParseLevel(c.Writer.Level)
}

// keywords parses the writer keyword mask, which may be decimal or "0x"-prefixed hexadecimal.
func (c *config) keywords() (event.Keyword, error) {
	s := strings.TrimSpace(c.Writer.Keywords)
	if s == "" {
		return 0, nil
	}
	k, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("parse writer keywords %q: %w", s, err)
	}
	return event.Keyword(k), nil
}
