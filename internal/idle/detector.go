// Package idle decides when a monitored instance has been idle long enough
// to pause. It performs no I/O.
package idle

import (
	"time"

	"github.com/younsl/autopaused/internal/models"
)

// Signal is the outcome of evaluating one utilization sample
type Signal int

const (
	// SignalNone means the dwell time is still running
	SignalNone Signal = iota
	// SignalActive means the sample was at or above the usage threshold
	SignalActive
	// SignalMarkCandidate means utilization just dropped below threshold
	SignalMarkCandidate
	// SignalConfirmPause means the dwell time elapsed; the caller pauses
	SignalConfirmPause
	// SignalSkip means the instance is paused and samples are ignored
	SignalSkip
)

func (s Signal) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalActive:
		return "active"
	case SignalMarkCandidate:
		return "mark_candidate"
	case SignalConfirmPause:
		return "confirm_pause"
	case SignalSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Thresholds configure the detector
type Thresholds struct {
	GPUUsagePercent float64       // samples at or above this are active
	IdleDuration    time.Duration // dwell time below threshold before pausing
}

// Decision is the detector's verdict for one sample
type Decision struct {
	Signal Signal
	At     time.Time
}

// Evaluate decides the transition for rec given a new sample. Equality with
// the usage threshold counts as active.
func Evaluate(rec models.InstanceRecord, s models.Sample, th Thresholds) Decision {
	d := Decision{At: s.At}

	switch {
	case rec.Phase == models.PhasePaused:
		d.Signal = SignalSkip
	case s.GPUUtilizationPercent >= th.GPUUsagePercent:
		d.Signal = SignalActive
	case rec.Phase != models.PhasePauseCandidate || rec.IdleCandidateSince == nil:
		d.Signal = SignalMarkCandidate
	case s.At.Sub(*rec.IdleCandidateSince) >= th.IdleDuration:
		d.Signal = SignalConfirmPause
	default:
		d.Signal = SignalNone
	}

	return d
}

// Apply writes the phase change of d into rec. Pausing is left to the
// caller, so SignalConfirmPause changes nothing here.
func (d Decision) Apply(rec *models.InstanceRecord) {
	switch d.Signal {
	case SignalActive:
		rec.Phase = models.PhaseActive
		rec.IdleCandidateSince = nil
		rec.LastActiveAt = d.At
	case SignalMarkCandidate:
		at := d.At
		rec.Phase = models.PhasePauseCandidate
		rec.IdleCandidateSince = &at
	}
}
