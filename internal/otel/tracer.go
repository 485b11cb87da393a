package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// InitializeProvider sets the global OTel TraceProvider.
//
// If no exporter is provided, no spans will be generated.
// The returned function flushes and then shuts down the provider.
func InitializeProvider(opts ...tracesdk.TracerProviderOption) (func(context.Context) error, error) {
	tracerProvider := tracesdk.NewTracerProvider(opts...)
	otel.SetTracerProvider(tracerProvider)

	f := func(ctx context.Context) error {
		err := tracerProvider.ForceFlush(ctx)
		// shutdown regardless of flush result
		if err2 := tracerProvider.Shutdown(ctx); err == nil && err2 != nil {
			return err2
		}
		return err
	}
	return f, nil
}

// Tracer returns the Tracer used for activity spans from tp, or from the global TracerProvider
// if tp is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	// use dedicated Tracer in case imported code modifies the global default.
	return tp.Tracer(
		InstrumentationName,
		trace.WithSchemaURL(semconv.SchemaURL),
	)
}
