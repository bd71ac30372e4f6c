package models

import "time"

// SavingsReport is the per-instance AutoPause savings projection
type SavingsReport struct {
	InstanceID       string
	OwnerID          string
	TotalSavings     float64 // USD
	TotalPausedHours float64
	PauseCount       int
	CurrentPhase     Phase
	LastActiveAt     time.Time
	LastPausedAt     *time.Time
}

// Analytics summarises AutoPause across every monitored instance
type Analytics struct {
	MonitoredCount            int
	PausedCount               int
	TotalSavingsAllTime       float64
	TotalPauseHours           float64
	AverageSavingsPerInstance float64
	PauseEfficiencyPercent    float64 // paused / monitored * 100
}

// PauseEventKind distinguishes journal entries
type PauseEventKind string

const (
	PauseEventPause  PauseEventKind = "pause"
	PauseEventResume PauseEventKind = "resume"
)

// PauseEvent is one journal entry written on a successful pause or resume
type PauseEvent struct {
	ID            string
	Kind          PauseEventKind
	InstanceID    string
	OwnerID       string
	Reason        string // "idle" or "manual" for pauses
	At            time.Time
	HourlyRate    float64
	PausedSeconds float64 // resume only
	Savings       float64 // resume only
}

// OwnerSavings aggregates journal savings for one owner
type OwnerSavings struct {
	OwnerID       string
	InstanceCount int
	PauseCount    int
	PausedHours   float64
	Savings       float64
	LastResumeAt  *time.Time
}

// SavingsEstimate compares an always-on dedicated GPU with paying only for active hours
type SavingsEstimate struct {
	GPUType             string
	ActiveHoursPerMonth float64
	DedicatedHourlyRate float64
	ServerlessRate      float64
	AlwaysOnMonthlyCost float64
	ActiveMonthlyCost   float64
	MonthlySavings      float64
	SavingsPercent      float64
}
