package metric

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			s, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q has data type %T", name, m.Data)
			}
			var total int64
			for _, dp := range s.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %q not found", name)
	return 0
}

func TestActivityInstruments(t *testing.T) {
	ctx := context.Background()
	reader := metric.NewManualReader()
	shutdown, err := InitializeProvider(metric.WithReader(reader))
	if err != nil {
		t.Fatalf("initialize provider: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(ctx) })

	i := Activity()
	i.Started(ctx, "p", "a")
	i.Started(ctx, "p", "b")
	i.Stopped(ctx, "p", "a", "0x00000000", "stopped", time.Millisecond)
	i.Error(ctx, "p", "b", "0x80004005")
	i.Fallback(ctx, "p", "0x80004005")

	rm := metricdata.ResourceMetrics{}
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	for name, want := range map[string]int64{
		"activity.started":         2,
		"activity.stopped":         1,
		"activity.in_flight":       1,
		"activity.errors":          1,
		"activity.fallback_errors": 1,
	} {
		if got := sumOf(t, rm, name); got != want {
			t.Errorf("%s: got %d, wanted %d", name, got, want)
		}
	}
}
