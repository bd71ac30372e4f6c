package idle

import (
	"testing"
	"time"

	"github.com/younsl/autopaused/internal/models"
)

var (
	t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	th = Thresholds{GPUUsagePercent: 5, IdleDuration: 120 * time.Second}
)

func sample(offset time.Duration, util float64) models.Sample {
	return models.Sample{At: t0.Add(offset), GPUUtilizationPercent: util}
}

// feed evaluates and applies each sample in order, returning the signals
func feed(rec *models.InstanceRecord, samples ...models.Sample) []Signal {
	var signals []Signal
	for _, s := range samples {
		d := Evaluate(*rec, s, th)
		d.Apply(rec)
		signals = append(signals, d.Signal)
	}
	return signals
}

func TestThresholdBoundaryIsActive(t *testing.T) {
	tests := []struct {
		name  string
		phase models.Phase
	}{
		{"from active", models.PhaseActive},
		{"from candidate", models.PhasePauseCandidate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			since := t0
			rec := models.InstanceRecord{Phase: tt.phase}
			if tt.phase == models.PhasePauseCandidate {
				rec.IdleCandidateSince = &since
			}

			d := Evaluate(rec, sample(time.Hour, 5), th)
			if d.Signal != SignalActive {
				t.Fatalf("signal = %s, want active", d.Signal)
			}
			d.Apply(&rec)
			if rec.Phase != models.PhaseActive || rec.IdleCandidateSince != nil {
				t.Errorf("record = %+v, want active with no candidate marker", rec)
			}
			if !rec.LastActiveAt.Equal(t0.Add(time.Hour)) {
				t.Errorf("LastActiveAt = %v", rec.LastActiveAt)
			}
		})
	}
}

func TestDwellTime(t *testing.T) {
	tests := []struct {
		name   string
		offset time.Duration
		want   Signal
	}{
		{"one second short", 119 * time.Second, SignalNone},
		{"exactly at dwell", 120 * time.Second, SignalConfirmPause},
		{"past dwell", 300 * time.Second, SignalConfirmPause},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := models.InstanceRecord{Phase: models.PhaseActive}
			feed(&rec, sample(0, 1))
			if rec.Phase != models.PhasePauseCandidate || !rec.IdleCandidateSince.Equal(t0) {
				t.Fatalf("candidate not marked at t0: %+v", rec)
			}

			if got := Evaluate(rec, sample(tt.offset, 1), th).Signal; got != tt.want {
				t.Errorf("signal = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNoOscillationFalsePositive(t *testing.T) {
	rec := models.InstanceRecord{Phase: models.PhaseActive}

	var samples []models.Sample
	for i := 0; i < 40; i++ {
		util := 3.0
		if i%2 == 1 {
			util = 60
		}
		samples = append(samples, sample(time.Duration(i)*30*time.Second, util))
	}

	for i, s := range feed(&rec, samples...) {
		if s == SignalConfirmPause {
			t.Fatalf("confirm-pause fired at sample %d", i)
		}
	}
}

func TestNeverFiresOnPaused(t *testing.T) {
	since := t0
	rec := models.InstanceRecord{Phase: models.PhasePaused, IdleCandidateSince: &since}

	for _, util := range []float64{0, 4.9, 5, 90} {
		d := Evaluate(rec, sample(time.Hour, util), th)
		if d.Signal != SignalSkip {
			t.Errorf("util %v: signal = %s, want skip", util, d.Signal)
		}
		d.Apply(&rec)
		if rec.Phase != models.PhasePaused {
			t.Fatalf("paused record changed phase to %s", rec.Phase)
		}
	}
}

func TestScenarioTransitions(t *testing.T) {
	rec := models.InstanceRecord{Phase: models.PhaseActive}

	signals := feed(&rec,
		sample(0, 80),
		sample(30*time.Second, 2),
		sample(150*time.Second, 2),
	)

	want := []Signal{SignalActive, SignalMarkCandidate, SignalConfirmPause}
	for i := range want {
		if signals[i] != want[i] {
			t.Errorf("sample %d: signal = %s, want %s", i, signals[i], want[i])
		}
	}
	if rec.Phase != models.PhasePauseCandidate {
		t.Errorf("confirm-pause must leave phase to the caller, got %s", rec.Phase)
	}
}

func TestCandidateWithoutMarkerIsRemarked(t *testing.T) {
	rec := models.InstanceRecord{Phase: models.PhasePauseCandidate}
	if got := Evaluate(rec, sample(0, 1), th).Signal; got != SignalMarkCandidate {
		t.Errorf("signal = %s, want mark_candidate", got)
	}
}
