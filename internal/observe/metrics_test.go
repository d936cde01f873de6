package observe

import (
	"context"
	"slices"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the value of the point of counter name labelled key=value.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) (int64, bool) {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("%s not recorded", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s is %T, want a sum", name, met.Data)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value, true
		}
	}
	return 0, false
}

// total adds up every point of counter name.
func total(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("%s not recorded", name)
	}
	var n int64
	for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
		n += dp.Value
	}
	return n
}

func TestNewMetrics_Histograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.DecodeDuration.Record(ctx, 0.3, metric.WithAttributes(attribute.String("source", "decode")))
	m.DecodeDuration.Record(ctx, 0.002, metric.WithAttributes(attribute.String("source", "cache")))
	m.FrameDuration.Record(ctx, 0.004)
	m.FrameDuration.Record(ctx, 0.02)
	m.FrameDuration.Record(ctx, 0.09)

	rm := collect(t, reader)
	for name, want := range map[string]struct {
		points int
		bounds []float64
	}{
		"wavecue.decode.duration": {2, latencyBuckets},
		"wavecue.frame.duration":  {1, frameBuckets},
	} {
		met := findMetric(rm, name)
		if met == nil {
			t.Errorf("%s not recorded", name)
			continue
		}
		if met.Unit != "s" {
			t.Errorf("%s unit = %q, want s", name, met.Unit)
		}
		hist := met.Data.(metricdata.Histogram[float64])
		if len(hist.DataPoints) != want.points {
			t.Errorf("%s has %d points, want %d", name, len(hist.DataPoints), want.points)
			continue
		}
		if !slices.Equal(hist.DataPoints[0].Bounds, want.bounds) {
			t.Errorf("%s bounds = %v", name, hist.DataPoints[0].Bounds)
		}
	}

	frames := findMetric(rm, "wavecue.frame.duration").Data.(metricdata.Histogram[float64]).DataPoints[0]
	if frames.Count != 3 {
		t.Errorf("frame samples = %d, want 3", frames.Count)
	}
	// 0.09 is past the last frame bucket.
	if over := frames.BucketCounts[len(frames.BucketCounts)-1]; over != 1 {
		t.Errorf("overflow bucket = %d, want 1", over)
	}
}

func TestRecordCacheRequest_ErrorsExcludeMisses(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	for _, status := range []string{"ok", "ok", "miss", "error", "timeout"} {
		m.RecordCacheRequest(ctx, "marker", "get", status)
	}
	m.RecordCacheRequest(ctx, "audio", "put", "miss")

	rm := collect(t, reader)
	if n := total(t, rm, "wavecue.cache.requests"); n != 6 {
		t.Errorf("requests = %d, want 6", n)
	}
	if n := total(t, rm, "wavecue.cache.errors"); n != 2 {
		t.Errorf("errors = %d, want 2", n)
	}
	if _, ok := sumFor(t, rm, "wavecue.cache.errors", "kind", "audio"); ok {
		t.Error("a miss was counted as an error")
	}
}

func TestRecordHelpers(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSeek(ctx, "click")
	m.RecordSeek(ctx, "click")
	m.RecordSeek(ctx, "entry")
	m.RecordMarkerChange(ctx, "nudge")
	m.RecordBreakerTransition("cache", "open")
	m.RecordBreakerTransition("cache", "half-open")
	m.RecordBreakerTransition("ffmpeg", "open")

	rm := collect(t, reader)
	tests := []struct {
		metric, key, value string
		want               int64
	}{
		{"wavecue.seeks", "origin", "click", 2},
		{"wavecue.seeks", "origin", "entry", 1},
		{"wavecue.marker.changes", "reason", "nudge", 1},
		{"wavecue.breaker.transitions", "breaker", "ffmpeg", 1},
		{"wavecue.breaker.transitions", "state", "half-open", 1},
	}
	for _, tc := range tests {
		if got, ok := sumFor(t, rm, tc.metric, tc.key, tc.value); !ok || got != tc.want {
			t.Errorf("%s{%s=%s} = %d (found %v), want %d", tc.metric, tc.key, tc.value, got, ok, tc.want)
		}
	}
}

func TestGaugesGoDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveConnections.Add(ctx, 3)
	m.ActiveConnections.Add(ctx, -2)
	m.ActiveSources.Add(ctx, 1)
	m.ActiveSources.Add(ctx, -1)

	rm := collect(t, reader)
	if n := total(t, rm, "wavecue.active_connections"); n != 1 {
		t.Errorf("active connections = %d, want 1", n)
	}
	if n := total(t, rm, "wavecue.active_sources"); n != 0 {
		t.Errorf("active sources = %d, want 0", n)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics built two instances")
	}
}
