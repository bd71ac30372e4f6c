package provider

import "errors"

var (
	// ErrInstanceNotFound is returned when the provider has no such instance
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrNoDatapoints is returned when the metrics backend has no recent samples
	ErrNoDatapoints = errors.New("no recent utilization datapoints")

	// ErrUnsupportedGPU is returned when a provider cannot host a GPU type
	ErrUnsupportedGPU = errors.New("gpu type not supported by provider")
)
