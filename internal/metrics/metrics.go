// Package metrics provides Prometheus collectors for the AutoPause engine
// and the provider orchestrator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autopause"

// ─── Engine ─────────────────────────────────────────────────────────────────

// MonitoredInstances tracks instances under supervision.
var MonitoredInstances = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "monitored_instances",
	Help:      "Number of instances under AutoPause supervision.",
})

// PausedInstances tracks instances currently paused.
var PausedInstances = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "paused_instances",
	Help:      "Number of supervised instances currently paused.",
})

// Pauses counts successful pauses by reason ("idle" or "manual").
var Pauses = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "pauses_total",
	Help:      "Total successful pauses.",
}, []string{"reason"})

// PauseFailures counts failed pause attempts by reason.
var PauseFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "pause_failures_total",
	Help:      "Total failed pause attempts.",
}, []string{"reason"})

// Resumes counts successful resumes.
var Resumes = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "resumes_total",
	Help:      "Total successful resumes.",
})

// MetricsUnavailable counts checks skipped because metrics could not be read.
var MetricsUnavailable = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "metrics_unavailable_total",
	Help:      "Checks skipped because provider metrics were unavailable.",
})

// SkippedChecks counts checks not run by reason ("in_flight", "not_running").
var SkippedChecks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "skipped_checks_total",
	Help:      "Per-instance checks skipped.",
}, []string{"reason"})

// SavingsDollars accumulates savings booked at resume time.
var SavingsDollars = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "savings_dollars_total",
	Help:      "Total savings booked at resume, in USD.",
})

// CheckDuration tracks per-instance check latency.
var CheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "check_duration_seconds",
	Help:      "Duration of a single per-instance check.",
	Buckets:   prometheus.DefBuckets,
})

// ─── Providers ──────────────────────────────────────────────────────────────

// ProviderCallDuration tracks provider call latency by provider, operation and result.
var ProviderCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "provider_call_duration_seconds",
	Help:      "Provider call duration in seconds.",
	Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
}, []string{"provider", "operation", "result"})

// ObserveProviderCall records one provider call.
func ObserveProviderCall(provider, operation string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ProviderCallDuration.WithLabelValues(provider, operation, result).Observe(elapsed.Seconds())
}
