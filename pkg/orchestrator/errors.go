package orchestrator

import "errors"

var (
	// ErrMetricsUnavailable means utilization could not be read this time.
	// Callers treat it as "skip", never as "idle".
	ErrMetricsUnavailable = errors.New("metrics unavailable")

	ErrPauseFailed  = errors.New("pause failed")
	ErrResumeFailed = errors.New("resume failed")
	ErrDeleteFailed = errors.New("delete failed")

	// ErrNoProviderAvailable means no provider satisfies the deployment policy
	ErrNoProviderAvailable = errors.New("no provider available")

	// ErrUnknownInstance means the instance has no provider binding
	ErrUnknownInstance = errors.New("unknown instance")

	// ErrUnknownProvider means a binding names a provider that is not configured
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrRateUnavailable means no hourly price is known for the instance
	ErrRateUnavailable = errors.New("hourly rate unavailable")
)
