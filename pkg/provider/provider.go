// Package provider defines the capability set every backing compute
// provider implements. Implementations live in pkg/aws and in Mock.
package provider

import (
	"context"
	"time"
)

// Kind describes how a provider pauses idle capacity
type Kind string

const (
	// KindVM providers must be stopped and started explicitly
	KindVM Kind = "vm"

	// KindSelfSuspending providers tear down idle capacity on their own and
	// resume it transparently on the next invocation
	KindSelfSuspending Kind = "self_suspending"
)

// Status is the provider-reported lifecycle state of an instance
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusStopping   Status = "stopping"
	StatusStopped    Status = "stopped"
	StatusSuspended  Status = "suspended"
	StatusTerminated Status = "terminated"
	StatusUnknown    Status = "unknown"
)

// Metrics is a utilization reading taken from a provider
type Metrics struct {
	GPUUtilizationPercent float64
	Status                Status
	CollectedAt           time.Time
}

// Client executes instance lifecycle operations against one provider.
// Implementations must be safe for concurrent use.
type Client interface {
	// Name is the stable provider tag used in bindings and policies
	Name() string
	Kind() Kind
	SupportsGPU(gpuType string) bool

	GetStatus(ctx context.Context, instanceID string) (Status, error)
	GetMetrics(ctx context.Context, instanceID string) (Metrics, error)
	Pause(ctx context.Context, instanceID string) error
	Resume(ctx context.Context, instanceID string) error

	// Delete tears down provider-side resources. Missing instances return
	// ErrInstanceNotFound.
	Delete(ctx context.Context, instanceID string) error
}
