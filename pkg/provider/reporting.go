package provider

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownErrorReporting = errors.New("unknown error reporting type")

// ErrorReporting controls how a provider reports failures that no activity observed.
type ErrorReporting string

const (
	// ErrorReportingNone drops fallback failures.
	ErrorReportingNone = ErrorReporting("none")
	// ErrorReportingTelemetry writes fallback failures with the telemetry keyword.
	ErrorReportingTelemetry = ErrorReporting("telemetry")
	// ErrorReportingTraceLogging writes fallback failures without any keyword.
	ErrorReportingTraceLogging = ErrorReporting("tracelogging")
)

var _reportingLookup = map[string]ErrorReporting{
	"none":         ErrorReportingNone,
	"telemetry":    ErrorReportingTelemetry,
	"tracelogging": ErrorReportingTraceLogging,
}

func ParseErrorReporting(s string) (ErrorReporting, error) {
	s = strings.ToLower(s)
	if r, ok := _reportingLookup[s]; ok {
		return r, nil
	}
	return ErrorReportingNone, fmt.Errorf("invalid error reporting type %q: %w", s, ErrUnknownErrorReporting)
}

func (r ErrorReporting) String() string {
	return string(r)
}

func (r ErrorReporting) MarshalText() ([]byte, error) {
	return []byte(r), nil
}

func (r *ErrorReporting) UnmarshalText(text []byte) (err error) {
	*r, err = ParseErrorReporting(string(text))
	return err
}
