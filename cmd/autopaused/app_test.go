package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/younsl/autopaused/internal/autopause"
	"github.com/younsl/autopaused/internal/config"
	"github.com/younsl/autopaused/internal/models"
	"github.com/younsl/autopaused/pkg/orchestrator"
	"github.com/younsl/autopaused/pkg/pricing"
	"github.com/younsl/autopaused/pkg/provider"
)

func mockOnlyConfig() config.Config {
	cfg := config.Default()
	cfg.AWS.Region = "us-west-2"
	cfg.AWS.EC2.Enabled = false
	cfg.AWS.Lambda.Enabled = false
	cfg.Mock.Enabled = true
	cfg.Mock.GPUTypes = []string{"t4", "A10G"}
	cfg.Deployment.Context = string(orchestrator.DeploymentOnPremise)
	return cfg
}

func TestResolveRegion_Explicit(t *testing.T) {
	if got := resolveRegion(context.Background(), mockOnlyConfig()); got != "us-west-2" {
		t.Errorf("resolveRegion = %q, want us-west-2", got)
	}
}

func TestBuildProviders_MockOnly(t *testing.T) {
	clients, mock, err := buildProviders(context.Background(), mockOnlyConfig(), "us-west-2")
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if len(clients) != 1 || mock == nil {
		t.Fatalf("got %d clients (mock %v), want only the mock", len(clients), mock != nil)
	}
	if !mock.SupportsGPU("T4") || mock.SupportsGPU("H100") {
		t.Error("mock GPU types should be normalized and limited to the configured list")
	}
}

func TestBuildProviders_NoneEnabled(t *testing.T) {
	cfg := mockOnlyConfig()
	cfg.Mock.Enabled = false
	if _, _, err := buildProviders(context.Background(), cfg, "us-west-2"); err == nil {
		t.Error("expected an error when no provider is enabled")
	}
}

func TestNewPricingClient_Overrides(t *testing.T) {
	cfg := mockOnlyConfig()
	cfg.Pricing.Rates = map[string]float64{"a10g": 1.25}

	prices := newPricingClient(context.Background(), cfg, zerolog.Nop())
	rate, source := prices.HourlyRate(context.Background(), pricing.RateQuery{ProviderKind: "vm", GPUType: "A10G"})
	if rate != 1.25 || source != pricing.PricingSourceConfig {
		t.Errorf("HourlyRate = %v (%s), want 1.25 (Config)", rate, source)
	}
}

func TestBootstrapInstances(t *testing.T) {
	ctx := context.Background()
	cfg := mockOnlyConfig()
	cfg.Instances = []config.InstanceConfig{
		{ID: "gpu-1", Owner: "alice", Provider: "mock", GPUType: "T4"},
		{ID: "gpu-2", Owner: "bob", Provider: "mock", GPUType: "A10G", HourlyRate: 2},
	}

	clients, mock, err := buildProviders(ctx, cfg, "us-west-2")
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	catalog := orchestrator.NewMemoryCatalog()
	// Left over from an earlier run whose provider is no longer enabled.
	catalog.Put(ctx, models.Binding{InstanceID: "i-old", OwnerID: "carol", Provider: "ec2"})

	orch, err := orchestrator.New(clients, orchestrator.Options{Catalog: catalog})
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	engine := autopause.New(cfg.Engine(), orch, zerolog.Nop())

	n, err := bootstrapInstances(ctx, cfg, "us-west-2", orch, catalog, fakeJournal{}, engine, mock, zerolog.Nop())
	if err != nil {
		t.Fatalf("bootstrapInstances: %v", err)
	}
	if n != 2 {
		t.Errorf("registered %d instances, want 2", n)
	}

	b, err := orch.Binding(ctx, "gpu-1")
	if err != nil {
		t.Fatalf("Binding: %v", err)
	}
	if b.Region != "us-west-2" || b.HourlyRate != 0.99 {
		t.Errorf("binding = %+v, want region us-west-2 and default T4 rate", b)
	}

	if st, err := mock.GetStatus(ctx, "gpu-2"); err != nil || st != provider.StatusRunning {
		t.Errorf("mock status = %v, %v; want running", st, err)
	}

	if _, err := engine.GetSavings("i-old"); err == nil {
		t.Error("binding of a disabled provider should not be registered")
	}
}

type fakeJournal map[string][]models.PauseEvent

func (f fakeJournal) Events(ctx context.Context, instanceID string, limit int) ([]models.PauseEvent, error) {
	return f[instanceID], nil
}

func TestBootstrapInstances_RestoresPaused(t *testing.T) {
	ctx := context.Background()
	cfg := mockOnlyConfig()
	cfg.Instances = []config.InstanceConfig{
		{ID: "gpu-1", Owner: "alice", Provider: "mock", GPUType: "T4"},
		{ID: "gpu-2", Owner: "bob", Provider: "mock", GPUType: "T4"},
	}

	// Journal left by the previous run: gpu-1 paused an hour ago, gpu-2 paused and resumed
	pausedAt := time.Now().Add(-time.Hour)
	journal := fakeJournal{
		"gpu-1": {
			{Kind: models.PauseEventPause, InstanceID: "gpu-1", OwnerID: "alice", Reason: "idle", At: pausedAt, HourlyRate: 0.99},
		},
		"gpu-2": {
			{Kind: models.PauseEventResume, InstanceID: "gpu-2", OwnerID: "bob", At: pausedAt, HourlyRate: 0.99, PausedSeconds: 3600, Savings: 0.99},
			{Kind: models.PauseEventPause, InstanceID: "gpu-2", OwnerID: "bob", Reason: "idle", At: pausedAt.Add(-time.Hour), HourlyRate: 0.99},
		},
	}

	clients, mock, err := buildProviders(ctx, cfg, "us-west-2")
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	catalog := orchestrator.NewMemoryCatalog()
	orch, err := orchestrator.New(clients, orchestrator.Options{Catalog: catalog})
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	engine := autopause.New(cfg.Engine(), orch, zerolog.Nop())

	if _, err := bootstrapInstances(ctx, cfg, "us-west-2", orch, catalog, journal, engine, mock, zerolog.Nop()); err != nil {
		t.Fatalf("bootstrapInstances: %v", err)
	}

	r, err := engine.GetSavings("gpu-1")
	if err != nil {
		t.Fatalf("GetSavings: %v", err)
	}
	if r.CurrentPhase != models.PhasePaused || r.PauseCount != 1 {
		t.Fatalf("gpu-1 = %+v, want paused once", r)
	}
	if st, _ := mock.GetStatus(ctx, "gpu-1"); st != provider.StatusStopped {
		t.Errorf("mock status = %s, want stopped", st)
	}

	if err := engine.Resume(ctx, "gpu-1"); err != nil {
		t.Fatalf("Resume after restart: %v", err)
	}
	if r, _ = engine.GetSavings("gpu-1"); r.TotalSavings < 0.98 || r.CurrentPhase != models.PhaseActive {
		t.Errorf("gpu-1 after resume = %+v, want about one hour of savings at 0.99", r)
	}

	r, _ = engine.GetSavings("gpu-2")
	if r.CurrentPhase != models.PhaseActive || r.PauseCount != 1 || r.TotalSavings != 0.99 {
		t.Errorf("gpu-2 = %+v, want active with the booked savings kept", r)
	}
}

func TestBootstrapInstances_UnsupportedGPU(t *testing.T) {
	ctx := context.Background()
	cfg := mockOnlyConfig()
	cfg.Instances = []config.InstanceConfig{{ID: "gpu-1", Owner: "alice", Provider: "mock", GPUType: "H100"}}

	clients, mock, _ := buildProviders(ctx, cfg, "us-west-2")
	catalog := orchestrator.NewMemoryCatalog()
	orch, _ := orchestrator.New(clients, orchestrator.Options{Catalog: catalog})
	engine := autopause.New(cfg.Engine(), orch, zerolog.Nop())

	if _, err := bootstrapInstances(ctx, cfg, "us-west-2", orch, catalog, fakeJournal{}, engine, mock, zerolog.Nop()); err == nil {
		t.Error("expected an error for a GPU type the provider does not offer")
	}
}

func TestOptedIn(t *testing.T) {
	got := optedIn([]models.GPUInstanceInfo{
		{InstanceID: "i-1", AutoPauseEnabled: true},
		{InstanceID: "i-2"},
		{InstanceID: "i-3", AutoPauseEnabled: true},
	})
	if len(got) != 2 || got[0].InstanceID != "i-1" || got[1].InstanceID != "i-3" {
		t.Errorf("optedIn = %+v, want i-1 and i-3", got)
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "scan", "savings", "select"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q not found", name)
		}
	}
}
