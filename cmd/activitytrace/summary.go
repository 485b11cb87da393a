package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/Microsoft/go-activity/pkg/event"
	"github.com/Microsoft/go-activity/pkg/event/writers/jsonwriter"
	"github.com/Microsoft/go-activity/pkg/failure"
)

// activitySummary aggregates the events written for one activity.
type activitySummary struct {
	Name      string
	ID        string
	Related   string
	Start     time.Time
	Stop      time.Time
	Finished  bool
	Result    failure.Code
	FailureID string

	IntermediateStops int
	Continues         int
	Errors            int
	Telemetry         int
}

func (a *activitySummary) duration() time.Duration {
	if !a.Finished || a.Start.IsZero() {
		return 0
	}
	return a.Stop.Sub(a.Start)
}

// summary aggregates events per activity, in order of first appearance.
//
// It reads either live events (as an [event.Writer]) or records decoded from a JSON event file.
type summary struct {
	mu        sync.Mutex
	order     []*activitySummary
	byID      map[string]*activitySummary
	fallbacks int
	messages  int
}

var _ event.Writer = (*summary)(nil)

func newSummary() *summary {
	return &summary{byID: make(map[string]*activitySummary)}
}

func (*summary) Enabled(event.Level, event.Keyword) bool { return true }

func (s *summary) Write(_ context.Context, e *event.Event) error {
	r := jsonwriter.FromEvent(e)
	s.add(&r)
	return nil
}

func (s *summary) activity(id string) *activitySummary {
	a, ok := s.byID[id]
	if !ok {
		a = &activitySummary{ID: id}
		s.byID[id] = a
		s.order = append(s.order, a)
	}
	return a
}

func (s *summary) add(r *jsonwriter.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ActivityID == "" {
		switch r.Name {
		case event.NameFallbackError:
			s.fallbacks++
		default:
			s.messages++
		}
		return
	}

	a := s.activity(r.ActivityID)
	switch {
	case r.Opcode == event.OpcodeStart.String():
		a.Name = r.Name
		a.Related = r.RelatedActivityID
		a.Start = r.Time
	case r.Opcode == event.OpcodeStop.String():
		a.Name = r.Name
		a.Finished = true
		a.Stop = r.Time
		a.Result = recordCode(r)
		if v, ok := r.Field(event.FieldFailureID); ok {
			a.FailureID = formatID(v)
		}
	case r.Name == event.NameActivityIntermediateStop:
		a.IntermediateStops++
	case r.Name == event.NameActivityContinue:
		a.Continues++
	case r.Name == event.NameActivityError:
		a.Errors++
	case r.Name == event.NameActivityFailure:
		a.Telemetry++
	}
}

// recordCode returns the result code of a record: a [failure.Code] for live events, or its text
// form for decoded ones.
func recordCode(r *jsonwriter.Record) failure.Code {
	v, _ := r.Field(event.FieldCode)
	switch c := v.(type) {
	case failure.Code:
		return c
	case string:
		if code, err := failure.ParseCode(c); err == nil {
			return code
		}
	}
	return failure.OK
}

// formatID formats a failure ID, which decodes from JSON as a float64.
func formatID(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// Activities returns the aggregated activities, in order of first appearance.
func (s *summary) Activities() []activitySummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	as := make([]activitySummary, 0, len(s.order))
	for _, a := range s.order {
		as = append(as, *a)
	}
	return as
}

func (s *summary) Fallbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fallbacks
}

func (s *summary) print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTIVITY\tID\tRESULT\tSTOPS\tERRORS\tFAILURE\tDURATION")
	for _, a := range s.Activities() {
		result, stops := "running", a.IntermediateStops
		if a.Finished {
			result, stops = a.Result.Name(), stops+1
		}
		failureID := a.FailureID
		if failureID == "" {
			failureID = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			a.Name, a.ID, result, stops, a.Errors, failureID, a.duration())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "fallback failures: %d\n", s.Fallbacks())
	return err
}
