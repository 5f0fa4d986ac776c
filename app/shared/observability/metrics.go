package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics is the per-service operation instrumentation contract.
// Every application service records attempts, outcomes, and durations
// through this interface so tests can swap in the no-op implementation.
type OperationMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)
}

// TrackerMetrics adds live-tracker specific counters on top of the
// operation set.
type TrackerMetrics interface {
	OperationMetrics
	RecordTick(ctx context.Context, outcome string)
	RecordMatchesDiscovered(ctx context.Context, count int)
	RecordTrackerStopped(ctx context.Context, reason string)
}

// ReplayMetrics adds timeline replay outcome counters.
type ReplayMetrics interface {
	OperationMetrics
	RecordSubSeries(ctx context.Context, outcome string)
}

// PrometheusMetrics implements all metric interfaces against a prometheus
// registry.
type PrometheusMetrics struct {
	attempts  *prometheus.CounterVec
	successes *prometheus.CounterVec
	failures  *prometheus.CounterVec
	durations *prometheus.HistogramVec

	ticks           *prometheus.CounterVec
	matchesFound    prometheus.Counter
	trackerStops    *prometheus.CounterVec
	subSeriesRuns   *prometheus.CounterVec
}

// NewPrometheusMetrics registers the metric families on the given registry.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_attempts_total",
			Help:      "Service operation attempts.",
		}, []string{"operation", "service"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_successes_total",
			Help:      "Service operation successes.",
		}, []string{"operation", "service"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Service operation failures.",
		}, []string{"operation", "service"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Service operation durations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "service"}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracker_ticks_total",
			Help:      "Live tracker ticks by outcome.",
		}, []string{"outcome"}),
		matchesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracker_matches_discovered_total",
			Help:      "Matches discovered across all live trackers.",
		}),
		trackerStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracker_stops_total",
			Help:      "Live tracker terminations by reason.",
		}, []string{"reason"}),
		subSeriesRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_sub_series_total",
			Help:      "Timeline replay sub-series runs by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.attempts, m.successes, m.failures, m.durations,
		m.ticks, m.matchesFound, m.trackerStops, m.subSeriesRuns)
	return m
}

func (m *PrometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.attempts.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.successes.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.failures.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, duration time.Duration) {
	m.durations.WithLabelValues(operation, service).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordTick(_ context.Context, outcome string) {
	m.ticks.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) RecordMatchesDiscovered(_ context.Context, count int) {
	m.matchesFound.Add(float64(count))
}

func (m *PrometheusMetrics) RecordTrackerStopped(_ context.Context, reason string) {
	m.trackerStops.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) RecordSubSeries(_ context.Context, outcome string) {
	m.subSeriesRuns.WithLabelValues(outcome).Inc()
}
