// Package observe provides application-wide observability primitives for
// voxos: OpenTelemetry metrics, tracing, and trace-aware structured logging.
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

// meterName is the instrumentation scope name used for all voxos metrics.
const meterName = "github.com/voxos-ai/voxos"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// LLMDuration tracks model inference latency.
	LLMDuration metric.Float64Histogram

	// EffectorDuration tracks effector execution latency.
	EffectorDuration metric.Float64Histogram

	// TurnDuration tracks end-to-end turn processing latency.
	TurnDuration metric.Float64Histogram

	// --- Counters ---

	// ToolCalls counts dispatched capability invocations. Use with attributes:
	//   attribute.String("capability", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// DecodeFailures counts replies from which no function call could be
	// extracted and that fell back to chat.
	DecodeFailures metric.Int64Counter

	// ValidationFailures counts rejected function calls. Use with attributes:
	//   attribute.String("capability", ...), attribute.String("kind", ...)
	ValidationFailures metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts model endpoint errors. Use with attribute:
	//   attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ScheduledTasks tracks the number of pending deferred commands.
	ScheduledTasks metric.Int64UpDownCounter

	// PendingConfirmations tracks dispatches suspended on the confirmation
	// gate.
	PendingConfirmations metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// local-model inference latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LLMDuration, err = m.Float64Histogram("voxos.llm.duration",
		metric.WithDescription("Latency of model inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EffectorDuration, err = m.Float64Histogram("voxos.effector.duration",
		metric.WithDescription("Latency of effector execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("voxos.turn.duration",
		metric.WithDescription("End-to-end turn processing latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ToolCalls, err = m.Int64Counter("voxos.tool.calls",
		metric.WithDescription("Total capability invocations by capability and status."),
	); err != nil {
		return nil, err
	}
	if met.DecodeFailures, err = m.Int64Counter("voxos.decode.failures",
		metric.WithDescription("Total replies with no recognisable function call."),
	); err != nil {
		return nil, err
	}
	if met.ValidationFailures, err = m.Int64Counter("voxos.validation.failures",
		metric.WithDescription("Total rejected function calls by capability and kind."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("voxos.provider.errors",
		metric.WithDescription("Total model endpoint errors by kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ScheduledTasks, err = m.Int64UpDownCounter("voxos.scheduled_tasks",
		metric.WithDescription("Number of pending deferred commands."),
	); err != nil {
		return nil, err
	}
	if met.PendingConfirmations, err = m.Int64UpDownCounter("voxos.pending_confirmations",
		metric.WithDescription("Number of dispatches awaiting confirmation."),
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

// RecordToolCall records a capability invocation with the standard attribute
// set.
func (m *Metrics) RecordToolCall(ctx context.Context, capability, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("capability", capability),
			attribute.String("status", status),
		),
	)
}

// RecordValidationFailure records a rejected function call.
func (m *Metrics) RecordValidationFailure(ctx context.Context, capability, kind string) {
	m.ValidationFailures.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("capability", capability),
			attribute.String("kind", kind),
		),
	)
}

// RecordProviderError records a model endpoint error.
func (m *Metrics) RecordProviderError(ctx context.Context, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}
