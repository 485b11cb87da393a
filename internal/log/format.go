package log

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// TimeFormat matches containerd's fixed-width RFC 3339 format, so timestamps line up in text output.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func FormatTime(t time.Time) string {
	return t.Format(TimeFormat)
}

// Format formats an object into a JSON string, without any indentation or
// HTML escapes.
// Context is used to output a log warning if the conversion fails.
//
// This is intended primarily for logging structured values (such as OTel resources) as a single field.
func Format(ctx context.Context, v any) string {
	b, err := encode(v)
	if err != nil {
		G(ctx).WithError(err).Warning("could not format value")
		return ""
	}

	return string(b)
}

func encode(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "")

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	// encoder.Encode appends a newline to the end
	return bytes.TrimSpace(buf.Bytes()), nil
}
