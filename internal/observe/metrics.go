// Package observe provides application-wide observability primitives for
// DailyFluent: OpenTelemetry metrics, distributed tracing, structured
// logging helpers, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all DailyFluent
// metrics.
const meterName = "github.com/manhtienmai/dailyfluent"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// CheckDuration tracks answer grading latency (alignment + scoring).
	CheckDuration metric.Float64Histogram

	// DraftDuration tracks whisper transcription latency during exercise
	// authoring.
	DraftDuration metric.Float64Histogram

	// FeedbackDuration tracks LLM feedback generation latency.
	FeedbackDuration metric.Float64Histogram

	// --- Counters ---

	// Checks counts graded submissions. Use with attribute:
	//   attribute.String("outcome", ...)
	Checks metric.Int64Counter

	// Reveals counts segments given up on.
	Reveals metric.Int64Counter

	// SeekRecoveries counts play-then-seek recovery rounds triggered by
	// out-of-tolerance seek confirmations.
	SeekRecoveries metric.Int64Counter

	// Supersessions counts playback requests cancelled by a newer request.
	Supersessions metric.Int64Counter

	// ProgressWrites counts progress-store writes. Use with attribute:
	//   attribute.String("status", ...)
	ProgressWrites metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live dictation sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveBridges tracks the number of connected media bridges.
	ActiveBridges metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Grading
// is sub-millisecond; transcription and feedback reach into seconds.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CheckDuration, err = m.Float64Histogram("dailyfluent.check.duration",
		metric.WithDescription("Latency of answer grading."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DraftDuration, err = m.Float64Histogram("dailyfluent.draft.duration",
		metric.WithDescription("Latency of whisper segment drafting."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FeedbackDuration, err = m.Float64Histogram("dailyfluent.feedback.duration",
		metric.WithDescription("Latency of LLM feedback generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Checks, err = m.Int64Counter("dailyfluent.checks",
		metric.WithDescription("Total graded submissions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Reveals, err = m.Int64Counter("dailyfluent.reveals",
		metric.WithDescription("Total segments revealed after exhausted attempts."),
	); err != nil {
		return nil, err
	}
	if met.SeekRecoveries, err = m.Int64Counter("dailyfluent.playback.seek_recoveries",
		metric.WithDescription("Total play-then-seek recovery rounds."),
	); err != nil {
		return nil, err
	}
	if met.Supersessions, err = m.Int64Counter("dailyfluent.playback.supersessions",
		metric.WithDescription("Total playback requests superseded by a newer request."),
	); err != nil {
		return nil, err
	}
	if met.ProgressWrites, err = m.Int64Counter("dailyfluent.progress.writes",
		metric.WithDescription("Total progress-store writes by status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("dailyfluent.active_sessions",
		metric.WithDescription("Number of live dictation sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveBridges, err = m.Int64UpDownCounter("dailyfluent.active_bridges",
		metric.WithDescription("Number of connected media bridges."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("dailyfluent.http.request.duration",
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
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

// RecordCheck records one graded submission with its outcome and latency.
func (m *Metrics) RecordCheck(ctx context.Context, outcome string, seconds float64) {
	m.Checks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
	m.CheckDuration.Record(ctx, seconds)
}

// RecordProgressWrite records one progress-store write outcome.
func (m *Metrics) RecordProgressWrite(ctx context.Context, status string) {
	m.ProgressWrites.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
