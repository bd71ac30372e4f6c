package models

import "time"

// Phase is the AutoPause lifecycle phase of a monitored instance
type Phase string

const (
	// PhaseActive means utilization is at or above the usage threshold
	PhaseActive Phase = "active"

	// PhasePauseCandidate means utilization dropped below threshold and the dwell time is running
	PhasePauseCandidate Phase = "pause_candidate"

	// PhasePaused means the instance was paused by AutoPause or by the user
	PhasePaused Phase = "paused"
)

// Sample is a single GPU utilization observation
type Sample struct {
	At                    time.Time
	GPUUtilizationPercent float64
}

// InstanceRecord is the AutoPause state of one monitored instance
type InstanceRecord struct {
	InstanceID              string
	OwnerID                 string
	Phase                   Phase
	History                 []Sample   // time ordered, bounded by the retention window
	IdleCandidateSince      *time.Time // set iff Phase == PhasePauseCandidate
	LastActiveAt            time.Time  // last sample at or above threshold
	LastPausedAt            *time.Time // last successful pause
	HourlyRateAtPause       float64    // captured when the pause succeeded
	PauseCount              int
	CumulativePausedSeconds float64
	CumulativeSavings       float64
	RegisteredAt            time.Time
}

// Clone returns a deep copy of the record
func (r InstanceRecord) Clone() InstanceRecord {
	out := r
	if r.History != nil {
		out.History = make([]Sample, len(r.History))
		copy(out.History, r.History)
	}
	if r.IdleCandidateSince != nil {
		t := *r.IdleCandidateSince
		out.IdleCandidateSince = &t
	}
	if r.LastPausedAt != nil {
		t := *r.LastPausedAt
		out.LastPausedAt = &t
	}
	return out
}

// AddSample appends s and evicts samples older than window relative to s.At.
// Samples older than the newest one already recorded are dropped.
func (r *InstanceRecord) AddSample(s Sample, window time.Duration) {
	if n := len(r.History); n > 0 && s.At.Before(r.History[n-1].At) {
		return
	}
	r.History = append(r.History, s)

	cutoff := s.At.Add(-window)
	i := 0
	for i < len(r.History) && !r.History[i].At.After(cutoff) {
		i++
	}
	if i > 0 {
		r.History = append(r.History[:0], r.History[i:]...)
	}
}
