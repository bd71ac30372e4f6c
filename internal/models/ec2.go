package models

import "time"

// GPUInstanceInfo represents a running GPU EC2 instance found by a scan
type GPUInstanceInfo struct {
	InstanceID            string
	Name                  string
	InstanceType          string
	GPUType               string
	Region                string
	AvailabilityZone      string
	OwnerID               string // from the owner tag, if present
	AutoPauseEnabled      bool   // opted in through the autopause:enabled tag
	LaunchTime            time.Time
	GPUUtilizationPercent float64
	MetricsAvailable      bool
	IsIdle                bool // utilization below the usage threshold
	HourlyRate            float64
	EstimatedMonthlyCost  float64
	PricingSource         string // "API", "Cache", "Default" or "N/A"
}
