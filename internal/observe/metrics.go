// Package observe wires OpenTelemetry metrics and traces into wavecue.
//
// [InitProvider] installs global providers whose metrics are scraped through
// a Prometheus registry. Code records through [Metrics]; production uses
// [DefaultMetrics] while tests build their own with [NewMetrics] on a manual
// reader.
package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/wavecue"

// Metrics holds every instrument wavecue records to.
type Metrics struct {
	DecodeDuration metric.Float64Histogram // source: cache|decode
	FrameDuration  metric.Float64Histogram

	CacheRequests      metric.Int64Counter // kind, op, status
	CacheErrors        metric.Int64Counter // kind, op
	Seeks              metric.Int64Counter // origin
	MarkerChanges      metric.Int64Counter // reason
	DriftCorrections   metric.Int64Counter
	BreakerTransitions metric.Int64Counter // breaker, state
	DecodeErrors       metric.Int64Counter

	ActiveSources     metric.Int64UpDownCounter
	ActiveConnections metric.Int64UpDownCounter // websocket clients

	HTTPRequestDuration metric.Float64Histogram // method, route, status
}

// latencyBuckets spans cache hits to long ffmpeg runs, in seconds.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// frameBuckets covers draw times around a 60 fps budget.
var frameBuckets = []float64{
	0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066,
}

// instruments creates instruments on one meter, collecting every error.
type instruments struct {
	m   metric.Meter
	err error
}

func (b *instruments) histogram(name, desc string, buckets []float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
	if buckets != nil {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := b.m.Float64Histogram(name, opts...)
	b.err = errors.Join(b.err, err)
	return h
}

func (b *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := b.m.Int64Counter(name, metric.WithDescription(desc))
	b.err = errors.Join(b.err, err)
	return c
}

func (b *instruments) gauge(name, desc string) metric.Int64UpDownCounter {
	g, err := b.m.Int64UpDownCounter(name, metric.WithDescription(desc))
	b.err = errors.Join(b.err, err)
	return g
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	b := &instruments{m: mp.Meter(meterName)}
	met := &Metrics{
		DecodeDuration: b.histogram("wavecue.decode.duration", "Latency of loading an audio source.", latencyBuckets),
		FrameDuration:  b.histogram("wavecue.frame.duration", "Time spent drawing one waveform frame.", frameBuckets),

		CacheRequests:      b.counter("wavecue.cache.requests", "Cache operations by kind, op and status."),
		Seeks:              b.counter("wavecue.seeks", "Seeks by origin."),
		MarkerChanges:      b.counter("wavecue.marker.changes", "Start-point changes by reason."),
		DriftCorrections:   b.counter("wavecue.drift.corrections", "Forced re-seeks while playback settles."),
		BreakerTransitions: b.counter("wavecue.breaker.transitions", "Circuit breaker state changes by breaker and new state."),
		CacheErrors:        b.counter("wavecue.cache.errors", "Failed cache operations by kind and op."),
		DecodeErrors:       b.counter("wavecue.decode.errors", "Audio sources that failed to decode."),

		ActiveSources:     b.gauge("wavecue.active_sources", "Audio sources currently open."),
		ActiveConnections: b.gauge("wavecue.active_connections", "Connected realtime clients."),

		HTTPRequestDuration: b.histogram("wavecue.http.request.duration", "HTTP request latency by method, route and status.", nil),
	}
	if b.err != nil {
		return nil, fmt.Errorf("observe: create instruments: %w", b.err)
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns instruments on the global meter provider, created on
// first use. Call it after [InitProvider].
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic(err)
		}
	})
	return defaultMetrics
}

// RecordCacheRequest records one cache operation. Statuses other than "ok"
// and "miss" also increment [Metrics.CacheErrors].
func (m *Metrics) RecordCacheRequest(ctx context.Context, kind, op, status string) {
	m.CacheRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
	if status != "ok" && status != "miss" {
		m.CacheErrors.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("kind", kind),
				attribute.String("op", op),
			),
		)
	}
}

// RecordSeek counts one seek.
func (m *Metrics) RecordSeek(ctx context.Context, origin string) {
	m.Seeks.Add(ctx, 1, metric.WithAttributes(attribute.String("origin", origin)))
}

// RecordMarkerChange counts one start-point change.
func (m *Metrics) RecordMarkerChange(ctx context.Context, reason string) {
	m.MarkerChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordBreakerTransition counts a circuit breaker entering state to.
func (m *Metrics) RecordBreakerTransition(name, to string) {
	m.BreakerTransitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("breaker", name),
		attribute.String("state", to),
	))
}
