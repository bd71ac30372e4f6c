package utils

import (
	"time"
)

// GetMonthlyHours returns the number of hours in a month (approximation)
func GetMonthlyHours() float64 {
	return 730.0 // 365 days / 12 months * 24 hours
}

// CostForDuration returns what hourlyRate costs over d
func CostForDuration(d time.Duration, hourlyRate float64) float64 {
	if d <= 0 {
		return 0
	}
	return d.Seconds() / 3600 * hourlyRate
}
