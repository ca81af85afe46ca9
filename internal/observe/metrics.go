// Package observe provides application-wide observability primitives for
// micscribe: OpenTelemetry metrics, tracing, structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
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

// meterName is the instrumentation scope name used for all micscribe metrics.
const meterName = "github.com/MrWong99/micscribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// RecognitionDuration tracks per-window speech recognition latency.
	RecognitionDuration metric.Float64Histogram

	// --- Counters ---

	// WindowsDispatched counts audio windows handed to the recognizer.
	WindowsDispatched metric.Int64Counter

	// WindowsDropped counts windows discarded by the dispatcher. Use with
	// attribute: attribute.String("reason", ...)
	WindowsDropped metric.Int64Counter

	// SegmentsEmitted counts transcript segments produced across the session.
	SegmentsEmitted metric.Int64Counter

	// --- Error counters ---

	// RecognitionErrors counts failed recognizer invocations.
	RecognitionErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live capture sessions. For a
	// single-process CLI this is 0 or 1, which still makes a useful
	// up/running signal for dashboards.
	ActiveSessions metric.Int64UpDownCounter

	// CapturedSeconds tracks the total audio captured so far, in seconds.
	CapturedSeconds metric.Float64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// whisper inference on few-second windows.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RecognitionDuration, err = m.Float64Histogram("micscribe.recognition.duration",
		metric.WithDescription("Latency of one speech recognition pass over an audio window."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.WindowsDispatched, err = m.Int64Counter("micscribe.windows.dispatched",
		metric.WithDescription("Total audio windows handed to the recognizer."),
	); err != nil {
		return nil, err
	}
	if met.WindowsDropped, err = m.Int64Counter("micscribe.windows.dropped",
		metric.WithDescription("Total audio windows discarded by the dispatcher, by reason."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsEmitted, err = m.Int64Counter("micscribe.segments.emitted",
		metric.WithDescription("Total transcript segments produced."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.RecognitionErrors, err = m.Int64Counter("micscribe.recognition.errors",
		metric.WithDescription("Total failed recognizer invocations."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("micscribe.active_sessions",
		metric.WithDescription("Number of live capture sessions."),
	); err != nil {
		return nil, err
	}
	if met.CapturedSeconds, err = m.Float64Counter("micscribe.captured_seconds",
		metric.WithDescription("Total seconds of audio captured from the device."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("micscribe.http.request.duration",
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

// RecordWindowDropped records one discarded window with the given reason,
// e.g. "busy" or "shutdown".
func (m *Metrics) RecordWindowDropped(ctx context.Context, reason string) {
	m.WindowsDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordRecognition records the outcome of one recognizer invocation: the
// latency histogram always, plus the error counter when err is non-nil and
// the segment counter otherwise.
func (m *Metrics) RecordRecognition(ctx context.Context, seconds float64, segments int, err error) {
	m.RecognitionDuration.Record(ctx, seconds)
	if err != nil {
		m.RecognitionErrors.Add(ctx, 1)
		return
	}
	m.SegmentsEmitted.Add(ctx, int64(segments))
}
