package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/Microsoft/go-winio/pkg/guid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Microsoft/go-activity/internal/log"
	"github.com/Microsoft/go-activity/internal/option"
	"github.com/Microsoft/go-activity/pkg/activity"
	"github.com/Microsoft/go-activity/pkg/event"
	"github.com/Microsoft/go-activity/pkg/failure"
	"github.com/Microsoft/go-activity/pkg/provider"
)

var errNoActivities = errors.New("scenario has no activities")

// scenario is a list of activities to run in order, and failures to report outside of any of
// them.
type scenario struct {
	Activities   []activitySpec `yaml:"activities"`
	Unattributed []failureSpec  `yaml:"unattributed"`
}

type activitySpec struct {
	Name               string         `yaml:"name"`
	Level              string         `yaml:"level"`
	Keyword            uint64         `yaml:"keyword"`
	TelemetryOnFailure bool           `yaml:"telemetry_on_failure"`
	Fields             map[string]any `yaml:"fields"`
	Message            string         `yaml:"message"`

	// Related is the name of an earlier activity in the scenario.
	Related option.Option[string] `yaml:"related"`
	// Splits is the number of additional handles, each run on its own goroutine.
	Splits int `yaml:"splits"`

	Failures []failureSpec `yaml:"failures"`
	// Results holds the stop result of each handle, starting with the original one.
	// Handles without an entry stop successfully.
	Results []failure.Code `yaml:"results"`
	// Abandon closes every handle without stopping it.
	Abandon bool `yaml:"abandon"`
}

type failureSpec struct {
	Code    failure.Code `yaml:"code"`
	Message string       `yaml:"message"`
	// Handle is the index of the handle reporting the failure. Defaults to the original handle.
	Handle option.Option[int] `yaml:"handle"`
}

func loadScenario(path string) (*scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s := &scenario{}
	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return s, nil
}

// validate rejects scenarios that would misuse the activity API, which is fatal at run time.
func (s *scenario) validate() error {
	if len(s.Activities) == 0 {
		return errNoActivities
	}
	seen := make(map[string]struct{}, len(s.Activities))
	for _, a := range s.Activities {
		if a.Name == "" {
			return errors.New("activity without a name")
		}
		if _, ok := seen[a.Name]; ok {
			return fmt.Errorf("duplicate activity %q", a.Name)
		}
		if option.IsSome(a.Related) {
			if _, ok := seen[option.Unwrap(a.Related)]; !ok {
				return fmt.Errorf("activity %q: related activity %q must come first", a.Name, option.Unwrap(a.Related))
			}
		}
		seen[a.Name] = struct{}{}

		if a.Splits < 0 {
			return fmt.Errorf("activity %q: negative splits", a.Name)
		}
		if n := a.Splits + 1; len(a.Results) > n {
			return fmt.Errorf("activity %q: %d results for %d handles", a.Name, len(a.Results), n)
		}
		for _, f := range a.Failures {
			if h := option.UnwrapOrDefault(f.Handle); h < 0 || h > a.Splits {
				return fmt.Errorf("activity %q: failure reported by unknown handle %d", a.Name, h)
			}
		}
		if a.Level != "" {
			if _, err := event.ParseLevel(a.Level); err != nil {
				return fmt.Errorf("activity %q: %w", a.Name, err)
			}
		}
	}
	return nil
}

func (a *activitySpec) newType(p *provider.Provider) (*activity.Type, error) {
	opts := []activity.TypeOption{activity.WithKeyword(event.Keyword(a.Keyword))}
	if a.Level != "" {
		lvl, err := event.ParseLevel(a.Level)
		if err != nil {
			return nil, err
		}
		opts = append(opts, activity.WithLevel(lvl))
	}
	if a.TelemetryOnFailure {
		opts = append(opts, activity.WithTelemetryOnFailure())
	}
	return activity.NewType(p, a.Name, opts...)
}

// fields returns the start fields, sorted by name.
func (a *activitySpec) fields() []event.Field {
	names := make([]string, 0, len(a.Fields))
	for n := range a.Fields {
		names = append(names, n)
	}
	sort.Strings(names)

	fs := make([]event.Field, 0, len(names))
	for _, n := range names {
		fs = append(fs, event.F(n, a.Fields[n]))
	}
	return fs
}

func (a *activitySpec) result(handle int) failure.Code {
	if handle < len(a.Results) {
		return a.Results[handle]
	}
	return failure.OK
}

func (a *activitySpec) failures(handle int) []failureSpec {
	var fs []failureSpec
	for _, f := range a.Failures {
		if option.UnwrapOrDefault(f.Handle) == handle {
			fs = append(fs, f)
		}
	}
	return fs
}

// runScenario runs the activities of s with provider p.
func runScenario(ctx context.Context, p *provider.Provider, s *scenario) error {
	ids := make(map[string]guid.GUID, len(s.Activities))
	for i := range s.Activities {
		a := &s.Activities[i]
		id, err := runActivity(ctx, p, a, ids)
		if err != nil {
			return fmt.Errorf("activity %q: %w", a.Name, err)
		}
		ids[a.Name] = id
	}

	for _, f := range s.Unattributed {
		failure.Report(ctx, f.Code, f.Message)
	}
	return nil
}

// runActivity starts the activity, then stops (or closes) the original handle and every split
// concurrently. It returns the activity ID.
func runActivity(ctx context.Context, p *provider.Provider, spec *activitySpec, ids map[string]guid.GUID) (guid.GUID, error) {
	t, err := spec.newType(p)
	if err != nil {
		return guid.GUID{}, err
	}

	a := t.New()
	if option.IsSome(spec.Related) {
		a.SetRelatedActivityID(ids[option.Unwrap(spec.Related)])
	}
	actx := a.Start(ctx, spec.fields()...)
	if spec.Message != "" {
		a.SetMessageCopy(spec.Message)
	}
	id := a.ID()
	log.G(actx).WithField("splits", spec.Splits).Debug("running activity")

	hs := make([]*activity.Activity, 0, spec.Splits+1)
	hs = append(hs, a)
	for i := 0; i < spec.Splits; i++ {
		hs = append(hs, a.Split())
	}

	var g errgroup.Group
	for i, h := range hs {
		i, h := i, h
		g.Go(func() error {
			hctx := actx
			if i > 0 {
				// splits watch from the caller's context, so that failures they observe are
				// not also delivered to the original handle's watcher
				hctx = h.EnsureWatchingCurrentThread(ctx)
			}
			defer h.Close()

			for _, f := range spec.failures(i) {
				failure.Report(hctx, f.Code, f.Message)
			}
			if !spec.Abandon {
				h.Stop(hctx, spec.result(i))
			}
			return nil
		})
	}
	return id, g.Wait()
}
