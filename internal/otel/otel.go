// helper functions for dealing with OTel
package otel

import (
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// InstrumentationName is the name of OTel ["go.opentelemetry.io/otel/metric".Meter] or
// ["go.opentelemetry.io/otel/trace".Tracer] used in this repo.
//
// Use one instrumentation library provider to simplify code.
const InstrumentationName = "github.com/Microsoft/go-activity"

func DefaultResource(appName, appVersion string, attrs ...attribute.KeyValue) *resource.Resource {
	as := []attribute.KeyValue{
		semconv.TelemetrySDKLanguageGo,
		semconv.TelemetrySDKName("opentelemetry"),
		semconv.TelemetrySDKVersion(otel.Version()),
	}

	if appName != "" {
		as = append(as, semconv.ServiceName(appName))
	}
	if appVersion != "" {
		as = append(as, semconv.ServiceVersion(appVersion))
	}
	as = append(as, attrs...)
	return resource.NewWithAttributes(semconv.SchemaURL, as...)
}

// Attribute converts an event field value to an OTel attribute.
//
// Integer types that do not fit an attribute are widened; values that implement
// [encoding.TextMarshaler] or [fmt.Stringer] (such as status codes and GUIDs) are stored as strings.
func Attribute(k string, v any) attribute.KeyValue {
	// based on github.com/containerd/containerd/tracing/helpers.go:any
	if v == nil {
		return attribute.String(k, "<nil>")
	}

	switch typed := v.(type) {
	case bool:
		return attribute.Bool(k, typed)
	case []bool:
		return attribute.BoolSlice(k, typed)
	case int:
		return attribute.Int(k, typed)
	case []int:
		return attribute.IntSlice(k, typed)
	case int8:
		return attribute.Int(k, int(typed))
	case int16:
		return attribute.Int(k, int(typed))
	case int32:
		return attribute.Int64(k, int64(typed))
	case int64:
		return attribute.Int64(k, typed)
	case []int64:
		return attribute.Int64Slice(k, typed)
	case uint8:
		return attribute.Int64(k, int64(typed))
	case uint16:
		return attribute.Int64(k, int64(typed))
	case uint32:
		return attribute.Int64(k, int64(typed))
	case float64:
		return attribute.Float64(k, typed)
	case []float64:
		return attribute.Float64Slice(k, typed)
	case string:
		return attribute.String(k, typed)
	case []string:
		return attribute.StringSlice(k, typed)
	case fmt.Stringer:
		return attribute.Stringer(k, typed)
	}

	if b, err := json.Marshal(v); b != nil && err == nil {
		return attribute.String(k, string(b))
	}
	return attribute.String(k, fmt.Sprintf("%v", v))
}
