package etw

import (
	"encoding"
	"fmt"
	"time"

	"github.com/Microsoft/go-winio/pkg/guid"

	"github.com/Microsoft/go-activity/pkg/callctx"
	"github.com/Microsoft/go-activity/pkg/failure"
)

// time.RFC3339Nano with nanoseconds padded using zeros to
// ensure the formatted time is always the same number of characters.
const iso8601 = "2006-01-02T15:04:05.000000000Z07:00"

// value converts an event field value to one that the TraceLogging field encoder handles natively.
//
// Status codes are written as signed 32 bit integers, matching how HRESULTs are usually decoded.
func value(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case failure.Code:
		return int32(t)
	case failure.Type:
		return t.String()
	case guid.GUID:
		return t.String()
	case time.Time:
		return t.Format(iso8601)
	case time.Duration:
		return t.Nanoseconds()
	case callctx.Snapshot:
		return fmt.Sprintf("%d:%s", t.ID, t.Name)
	case error:
		return t.Error()
	case encoding.TextMarshaler:
		b, err := t.MarshalText()
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	case fmt.Stringer:
		return t.String()
	}
	return v
}
