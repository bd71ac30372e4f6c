// Package registry holds the AutoPause state of every supervised instance.
//
// Each instance has its own operation lock, so work on one instance never
// waits on another. Reads go through published snapshots and never block
// on an in-flight operation.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/younsl/autopaused/internal/models"
)

var (
	// ErrNotRegistered is returned for instances not under supervision
	ErrNotRegistered = errors.New("instance not registered")

	// ErrCheckDiscarded is returned when an operation finished after its
	// instance was unregistered. Its result was not written back.
	ErrCheckDiscarded = errors.New("result discarded")
)

type entry struct {
	op       sync.Mutex // held for the whole read-modify-write, provider calls included
	checking atomic.Bool
	removed  atomic.Bool

	// ctx is cancelled on Remove and aborts any in-flight operation
	ctx    context.Context
	cancel context.CancelFunc

	snapshot atomic.Pointer[models.InstanceRecord]
}

// Registry is safe for concurrent use
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Add puts rec under supervision. It reports false, leaving the existing
// record untouched, if the instance is already registered.
func (r *Registry) Add(rec models.InstanceRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[rec.InstanceID]; ok {
		return false
	}

	e := &entry{}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	rec = rec.Clone()
	e.snapshot.Store(&rec)
	r.entries[rec.InstanceID] = e
	return true
}

// Remove drops an instance and cancels its in-flight operation. It reports
// false if the instance was not registered.
func (r *Registry) Remove(instanceID string) bool {
	r.mu.Lock()
	e, ok := r.entries[instanceID]
	delete(r.entries, instanceID)
	r.mu.Unlock()

	if !ok {
		return false
	}
	e.removed.Store(true)
	e.cancel()
	return true
}

func (r *Registry) lookup(instanceID string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[instanceID]
}

// Do runs fn on a copy of the instance's record while holding the
// instance's lock, then publishes the copy. The context passed to fn is
// cancelled when ctx is or when the instance is removed. If the instance
// was removed the copy is discarded and ErrCheckDiscarded returned.
// Otherwise the copy is published even if fn fails or ctx was cancelled,
// so a provider call that completed is never lost, and fn's error is
// returned.
func (r *Registry) Do(ctx context.Context, instanceID string, fn func(ctx context.Context, rec *models.InstanceRecord) error) error {
	e := r.lookup(instanceID)
	if e == nil {
		return fmt.Errorf("%s: %w", instanceID, ErrNotRegistered)
	}

	e.op.Lock()
	defer e.op.Unlock()

	if e.removed.Load() {
		return fmt.Errorf("%s: %w", instanceID, ErrNotRegistered)
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(e.ctx, cancel)
	defer stop()

	rec := e.snapshot.Load().Clone()
	err := fn(opCtx, &rec)

	if e.removed.Load() {
		return fmt.Errorf("%s: %w", instanceID, ErrCheckDiscarded)
	}
	e.snapshot.Store(&rec)
	return err
}

// BeginCheck claims the instance's single check slot. It reports false if
// the instance is unknown or a check is already in flight. The returned
// release func frees the slot.
func (r *Registry) BeginCheck(instanceID string) (release func(), ok bool) {
	e := r.lookup(instanceID)
	if e == nil || !e.checking.CompareAndSwap(false, true) {
		return nil, false
	}
	return func() { e.checking.Store(false) }, true
}

// Get returns the last published record of an instance
func (r *Registry) Get(instanceID string) (models.InstanceRecord, bool) {
	e := r.lookup(instanceID)
	if e == nil {
		return models.InstanceRecord{}, false
	}
	return e.snapshot.Load().Clone(), true
}

// Snapshot returns every published record, ordered by instance ID. Records
// are individually consistent; the set is not a point-in-time view.
func (r *Registry) Snapshot() []models.InstanceRecord {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]models.InstanceRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot.Load().Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out
}

// IDs returns the registered instance IDs, sorted
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
