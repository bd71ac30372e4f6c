package provider

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Mock is an in-memory Client used by tests and by `serve` when a
// provider is configured with type "mock".
type Mock struct {
	name string
	kind Kind
	gpus map[string]bool

	mu        sync.Mutex
	instances map[string]*mockInstance
	calls     map[string]int
	delay     time.Duration

	// Failure injection, keyed by operation name ("metrics", "pause", "resume", "delete", "status")
	failures map[string]error
}

type mockInstance struct {
	status      Status
	utilization float64
}

// NewMock creates a mock provider supporting the given GPU types.
// An empty list supports every GPU type.
func NewMock(name string, kind Kind, gpuTypes ...string) *Mock {
	gpus := make(map[string]bool, len(gpuTypes))
	for _, g := range gpuTypes {
		gpus[g] = true
	}
	return &Mock{
		name:      name,
		kind:      kind,
		gpus:      gpus,
		instances: make(map[string]*mockInstance),
		calls:     make(map[string]int),
		failures:  make(map[string]error),
	}
}

func (m *Mock) Name() string { return m.name }
func (m *Mock) Kind() Kind   { return m.kind }

func (m *Mock) SupportsGPU(gpuType string) bool {
	return len(m.gpus) == 0 || m.gpus[gpuType]
}

// AddInstance registers a running instance with the given utilization
func (m *Mock) AddInstance(instanceID string, utilization float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[instanceID] = &mockInstance{status: StatusRunning, utilization: utilization}
}

// SetUtilization changes the utilization reported for an instance
func (m *Mock) SetUtilization(instanceID string, utilization float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.instances[instanceID]; ok {
		inst.utilization = utilization
	}
}

// SetStatus overrides the reported status of an instance
func (m *Mock) SetStatus(instanceID string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.instances[instanceID]; ok {
		inst.status = status
	}
}

// Fail makes the named operation return err until cleared with a nil err
func (m *Mock) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// SetDelay makes every call block for d or until its context is done
func (m *Mock) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns how many times op was invoked
func (m *Mock) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// begin records the call, applies the configured delay and returns the
// injected failure for op, if any.
func (m *Mock) begin(ctx context.Context, op string) error {
	m.mu.Lock()
	m.calls[op]++
	delay := m.delay
	err := m.failures[op]
	m.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

func (m *Mock) lookup(instanceID string) (*mockInstance, error) {
	inst, ok := m.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", m.name, instanceID, ErrInstanceNotFound)
	}
	return inst, nil
}

func (m *Mock) GetStatus(ctx context.Context, instanceID string) (Status, error) {
	if err := m.begin(ctx, "status"); err != nil {
		return StatusUnknown, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, err := m.lookup(instanceID)
	if err != nil {
		return StatusUnknown, err
	}
	return inst.status, nil
}

func (m *Mock) GetMetrics(ctx context.Context, instanceID string) (Metrics, error) {
	if err := m.begin(ctx, "metrics"); err != nil {
		return Metrics{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, err := m.lookup(instanceID)
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{
		GPUUtilizationPercent: inst.utilization,
		Status:                inst.status,
		CollectedAt:           time.Now(),
	}, nil
}

func (m *Mock) Pause(ctx context.Context, instanceID string) error {
	if err := m.begin(ctx, "pause"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, err := m.lookup(instanceID)
	if err != nil {
		return err
	}
	if m.kind == KindSelfSuspending {
		inst.status = StatusSuspended
	} else {
		inst.status = StatusStopped
	}
	return nil
}

func (m *Mock) Resume(ctx context.Context, instanceID string) error {
	if err := m.begin(ctx, "resume"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, err := m.lookup(instanceID)
	if err != nil {
		return err
	}
	inst.status = StatusRunning
	return nil
}

func (m *Mock) Delete(ctx context.Context, instanceID string) error {
	if err := m.begin(ctx, "delete"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.lookup(instanceID); err != nil {
		return err
	}
	delete(m.instances, instanceID)
	return nil
}
