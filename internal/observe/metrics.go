// Package observe provides application-wide observability primitives for
// Airwave: OpenTelemetry metrics, distributed tracing, trace-aware logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Airwave metrics.
const meterName = "github.com/MrWong99/airwave"

// Status attribute values shared by several counters.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Playback ---

	// PlaybackStarts counts launch attempts. Use with attributes:
	//   attribute.String("status", ...), attribute.Bool("manual", ...)
	PlaybackStarts metric.Int64Counter

	// PlaybackRetries counts scheduled automatic relaunches.
	PlaybackRetries metric.Int64Counter

	// PlaybackGiveUps counts guilds that exhausted their retry budget.
	PlaybackGiveUps metric.Int64Counter

	// PipelineTerminations counts decoder pipeline ends. Use with attribute:
	//   attribute.String("reason", "clean"|"error"|"stopped"|"stale")
	PipelineTerminations metric.Int64Counter

	// ActiveStreams tracks the number of guilds currently streaming.
	ActiveStreams metric.Int64UpDownCounter

	// ConnectDuration tracks voice connect and move latency.
	ConnectDuration metric.Float64Histogram

	// --- Metadata ---

	// MetadataFetches counts ICY metadata requests. Use with attribute:
	//   attribute.String("status", ...)
	MetadataFetches metric.Int64Counter

	// MetadataFetchDuration tracks ICY metadata request latency.
	MetadataFetchDuration metric.Float64Histogram

	// --- Display & persistence ---

	// DisplayUpdates counts now-playing message operations. Use with attributes:
	//   attribute.String("op", "send"|"edit"|"delete"), attribute.String("status", ...)
	DisplayUpdates metric.Int64Counter

	// PersistenceErrors counts failed resume snapshot writes and reads.
	PersistenceErrors metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) covering
// quick metadata requests up to slow voice handshakes.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.PlaybackStarts, err = m.Int64Counter("airwave.playback.starts",
		metric.WithDescription("Total playback launch attempts by status and trigger."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackRetries, err = m.Int64Counter("airwave.playback.retries",
		metric.WithDescription("Total automatic relaunches scheduled after a failure."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackGiveUps, err = m.Int64Counter("airwave.playback.give_ups",
		metric.WithDescription("Total guilds that stopped retrying after exhausting the retry budget."),
	); err != nil {
		return nil, err
	}
	if met.PipelineTerminations, err = m.Int64Counter("airwave.pipeline.terminations",
		metric.WithDescription("Total decoder pipeline terminations by reason."),
	); err != nil {
		return nil, err
	}
	if met.MetadataFetches, err = m.Int64Counter("airwave.metadata.fetches",
		metric.WithDescription("Total ICY metadata fetches by status."),
	); err != nil {
		return nil, err
	}
	if met.DisplayUpdates, err = m.Int64Counter("airwave.display.updates",
		metric.WithDescription("Total now-playing message operations by op and status."),
	); err != nil {
		return nil, err
	}
	if met.PersistenceErrors, err = m.Int64Counter("airwave.persistence.errors",
		metric.WithDescription("Total failed resume snapshot operations."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveStreams, err = m.Int64UpDownCounter("airwave.active_streams",
		metric.WithDescription("Number of guilds currently streaming."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.ConnectDuration, err = m.Float64Histogram("airwave.voice.connect.duration",
		metric.WithDescription("Latency of voice channel connects and moves."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MetadataFetchDuration, err = m.Float64Histogram("airwave.metadata.fetch.duration",
		metric.WithDescription("Latency of ICY metadata fetches."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("airwave.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// StatusOf maps err to [StatusOK] or [StatusError].
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// RecordPlaybackStart records one launch attempt.
func (m *Metrics) RecordPlaybackStart(ctx context.Context, manual bool, status string) {
	m.PlaybackStarts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
			attribute.Bool("manual", manual),
		),
	)
}

// RecordTermination records one pipeline end.
func (m *Metrics) RecordTermination(ctx context.Context, reason string) {
	m.PipelineTerminations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordMetadataFetch records one ICY request and its latency in seconds.
func (m *Metrics) RecordMetadataFetch(ctx context.Context, status string, seconds float64) {
	m.MetadataFetches.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.MetadataFetchDuration.Record(ctx, seconds)
}

// RecordDisplayUpdate records one now-playing message operation.
func (m *Metrics) RecordDisplayUpdate(ctx context.Context, op, status string) {
	m.DisplayUpdates.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
}

// RecordPersistenceError records one failed resume store operation.
func (m *Metrics) RecordPersistenceError(ctx context.Context, op string) {
	m.PersistenceErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
