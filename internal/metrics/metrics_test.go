package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestEngineMetrics(t *testing.T) {
	MonitoredInstances.Set(3)
	PausedInstances.Set(1)
	Pauses.WithLabelValues("idle").Inc()
	PauseFailures.WithLabelValues("manual").Inc()
	Resumes.Inc()
	MetricsUnavailable.Inc()
	SkippedChecks.WithLabelValues("in_flight").Inc()
	SavingsDollars.Add(0.05)
	CheckDuration.Observe(0.2)

	names := gatheredNames(t)
	expected := []string{
		"autopause_monitored_instances",
		"autopause_paused_instances",
		"autopause_pauses_total",
		"autopause_pause_failures_total",
		"autopause_resumes_total",
		"autopause_metrics_unavailable_total",
		"autopause_skipped_checks_total",
		"autopause_savings_dollars_total",
		"autopause_check_duration_seconds",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestObserveProviderCall(t *testing.T) {
	ObserveProviderCall("ec2", "pause", 150*time.Millisecond, nil)
	ObserveProviderCall("ec2", "pause", time.Second, errors.New("throttled"))

	if !gatheredNames(t)["autopause_provider_call_duration_seconds"] {
		t.Error("autopause_provider_call_duration_seconds not found")
	}
}
