package store

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/younsl/autopaused/internal/autopause"
	"github.com/younsl/autopaused/internal/models"
	"github.com/younsl/autopaused/pkg/orchestrator"
)

// Compile-time interface checks
var (
	_ orchestrator.Catalog = (*Store)(nil)
	_ autopause.Journal    = (*Store)(nil)
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var base = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(dir, FileName)); os.IsNotExist(err) {
		t.Errorf("%s should exist", FileName)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := s.Put(ctx, models.Binding{InstanceID: "i-1", OwnerID: "alice", Provider: "ec2", CreatedAt: base}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	s.Close()

	s, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s.Close()
	if _, err := s.Get(ctx, "i-1"); err != nil {
		t.Errorf("binding lost across reopen: %v", err)
	}
}

// ─── Bindings ───────────────────────────────────────────────────────────────

func TestBindings_CRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := models.Binding{
		InstanceID:   "i-0abc",
		OwnerID:      "alice",
		Provider:     "ec2",
		GPUType:      "A10G",
		InstanceType: "g5.xlarge",
		Region:       "us-east-1",
		HourlyRate:   1.006,
		CreatedAt:    base,
	}
	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := s.Get(ctx, "i-0abc")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	gotCreated, wantCreated := got.CreatedAt, want.CreatedAt
	got.CreatedAt, want.CreatedAt = time.Time{}, time.Time{}
	if got != want || !gotCreated.Equal(wantCreated) {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	want.HourlyRate = 2.5
	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("Put() update error: %v", err)
	}
	if got, _ := s.Get(ctx, "i-0abc"); got.HourlyRate != 2.5 {
		t.Errorf("HourlyRate = %v, want 2.5", got.HourlyRate)
	}

	if err := s.Delete(ctx, "i-0abc"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if err := s.Delete(ctx, "i-0abc"); err != nil {
		t.Fatalf("second Delete() error: %v", err)
	}
	if _, err := s.Get(ctx, "i-0abc"); !errors.Is(err, orchestrator.ErrUnknownInstance) {
		t.Errorf("Get() deleted = %v, want ErrUnknownInstance", err)
	}
}

func TestBindings_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"i-3", "i-1", "i-2"} {
		if err := s.Put(ctx, models.Binding{InstanceID: id, OwnerID: "bob", Provider: "mock", CreatedAt: base}); err != nil {
			t.Fatalf("Put() error: %v", err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 3 || list[0].InstanceID != "i-1" || list[2].InstanceID != "i-3" {
		t.Errorf("List() = %+v, want ordered by ID", list)
	}
}

// ─── Journal ────────────────────────────────────────────────────────────────

func seedJournal(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	events := []models.PauseEvent{
		{Kind: models.PauseEventPause, InstanceID: "i-1", OwnerID: "alice", Reason: "idle", At: base, HourlyRate: 2},
		{Kind: models.PauseEventResume, InstanceID: "i-1", OwnerID: "alice", At: base.Add(time.Hour), HourlyRate: 2, PausedSeconds: 3600, Savings: 2},
		{Kind: models.PauseEventPause, InstanceID: "i-2", OwnerID: "alice", Reason: "manual", At: base.Add(2 * time.Hour), HourlyRate: 4},
		{Kind: models.PauseEventResume, InstanceID: "i-2", OwnerID: "alice", At: base.Add(150 * time.Minute), HourlyRate: 4, PausedSeconds: 1800, Savings: 2},
		{Kind: models.PauseEventPause, InstanceID: "i-3", OwnerID: "bob", Reason: "idle", At: base.Add(3 * time.Hour), HourlyRate: 1},
	}
	for _, ev := range events {
		if err := s.Record(ctx, ev); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}
}

func TestJournal_Events(t *testing.T) {
	s := newTestStore(t)
	seedJournal(t, s)
	ctx := context.Background()

	all, err := s.Events(ctx, "", 0)
	if err != nil {
		t.Fatalf("Events() error: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("Events() = %d, want 5", len(all))
	}
	if all[0].InstanceID != "i-3" {
		t.Errorf("newest event = %s, want i-3", all[0].InstanceID)
	}
	for _, ev := range all {
		if ev.ID == "" {
			t.Error("event without ID")
		}
	}

	i1, err := s.Events(ctx, "i-1", 0)
	if err != nil {
		t.Fatalf("Events(i-1) error: %v", err)
	}
	if len(i1) != 2 || i1[0].Kind != models.PauseEventResume || !i1[0].At.Equal(base.Add(time.Hour)) {
		t.Errorf("Events(i-1) = %+v", i1)
	}

	limited, _ := s.Events(ctx, "", 2)
	if len(limited) != 2 {
		t.Errorf("Events(limit 2) = %d", len(limited))
	}
}

func TestJournal_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ev := models.PauseEvent{ID: "fixed", Kind: models.PauseEventPause, InstanceID: "i-1", OwnerID: "alice", At: base}

	if err := s.Record(ctx, ev); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if err := s.Record(ctx, ev); err == nil {
		t.Error("duplicate event ID should fail")
	}
}

func TestJournal_OwnerSavings(t *testing.T) {
	s := newTestStore(t)
	seedJournal(t, s)
	ctx := context.Background()

	owners, err := s.OwnerSavings(ctx, "")
	if err != nil {
		t.Fatalf("OwnerSavings() error: %v", err)
	}
	if len(owners) != 2 {
		t.Fatalf("OwnerSavings() = %+v, want 2 owners", owners)
	}

	alice := owners[0]
	if alice.OwnerID != "alice" || alice.InstanceCount != 2 || alice.PauseCount != 2 {
		t.Errorf("alice = %+v", alice)
	}
	if math.Abs(alice.Savings-4) > 1e-9 || math.Abs(alice.PausedHours-1.5) > 1e-9 {
		t.Errorf("alice totals = %v$ %vh, want 4$ 1.5h", alice.Savings, alice.PausedHours)
	}
	if alice.LastResumeAt == nil || !alice.LastResumeAt.Equal(base.Add(150*time.Minute)) {
		t.Errorf("alice last resume = %v", alice.LastResumeAt)
	}

	bob := owners[1]
	if bob.OwnerID != "bob" || bob.Savings != 0 || bob.LastResumeAt != nil {
		t.Errorf("bob = %+v", bob)
	}

	only, err := s.OwnerSavings(ctx, "bob")
	if err != nil {
		t.Fatalf("OwnerSavings(bob) error: %v", err)
	}
	if len(only) != 1 || only[0].OwnerID != "bob" {
		t.Errorf("OwnerSavings(bob) = %+v", only)
	}
}
