package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/younsl/autopaused/internal/models"
)

// Catalog stores instance to provider bindings. Get returns
// ErrUnknownInstance for a missing binding; Delete of a missing binding is
// not an error.
type Catalog interface {
	Get(ctx context.Context, instanceID string) (models.Binding, error)
	Put(ctx context.Context, b models.Binding) error
	Delete(ctx context.Context, instanceID string) error
	List(ctx context.Context) ([]models.Binding, error)
}

// MemoryCatalog is an in-process Catalog
type MemoryCatalog struct {
	mu       sync.RWMutex
	bindings map[string]models.Binding
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{bindings: make(map[string]models.Binding)}
}

func (m *MemoryCatalog) Get(ctx context.Context, instanceID string) (models.Binding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bindings[instanceID]
	if !ok {
		return models.Binding{}, fmt.Errorf("%s: %w", instanceID, ErrUnknownInstance)
	}
	return b, nil
}

func (m *MemoryCatalog) Put(ctx context.Context, b models.Binding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[b.InstanceID] = b
	return nil
}

func (m *MemoryCatalog) Delete(ctx context.Context, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bindings, instanceID)
	return nil
}

// List returns bindings ordered by instance ID
func (m *MemoryCatalog) List(ctx context.Context) ([]models.Binding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Binding, 0, len(m.bindings))
	for _, b := range m.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out, nil
}
