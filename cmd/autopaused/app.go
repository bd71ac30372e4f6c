package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/younsl/autopaused/internal/autopause"
	"github.com/younsl/autopaused/internal/config"
	"github.com/younsl/autopaused/internal/models"
	"github.com/younsl/autopaused/pkg/aws"
	"github.com/younsl/autopaused/pkg/orchestrator"
	"github.com/younsl/autopaused/pkg/pricing"
	"github.com/younsl/autopaused/pkg/provider"
	"github.com/younsl/autopaused/pkg/utils"
)

// resolveRegion turns the configured region into a concrete one
func resolveRegion(ctx context.Context, cfg config.Config) string {
	if cfg.AWS.Region != "" && cfg.AWS.Region != "auto" {
		return cfg.AWS.Region
	}
	if !cfg.AWS.EC2.Enabled && !cfg.AWS.Lambda.Enabled {
		return utils.DetectRegion(ctx, nil)
	}
	return utils.DetectRegion(ctx, utils.NewIMDSRegionGetter())
}

// newPricingClient builds the rate resolver with configured overrides applied.
// API lookups need the EC2 provider; without it only overrides and defaults apply.
func newPricingClient(ctx context.Context, cfg config.Config, logger zerolog.Logger) *pricing.Client {
	var prices *pricing.Client
	if cfg.Pricing.UseAPI && cfg.AWS.EC2.Enabled {
		c, err := pricing.NewClient(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Pricing API unavailable, using default GPU prices")
		} else {
			prices = c
		}
	}
	if prices == nil {
		prices = pricing.NewClientWithAPI(nil)
	}

	for gpu, rate := range cfg.Pricing.Rates {
		prices.SetOverride(utils.NormalizeGPUType(gpu), rate)
	}
	return prices
}

// buildProviders creates the enabled provider clients. The mock provider
// is returned separately so callers can seed its instances.
func buildProviders(ctx context.Context, cfg config.Config, region string) ([]provider.Client, *provider.Mock, error) {
	var clients []provider.Client

	if cfg.AWS.EC2.Enabled {
		c, err := aws.NewEC2Client(ctx, region, aws.EC2Options{
			GPUTypes:        cfg.AWS.EC2.GPUTypes,
			MetricNamespace: cfg.AWS.EC2.MetricNamespace,
			MetricName:      cfg.AWS.EC2.MetricName,
			Hibernate:       cfg.AWS.EC2.Hibernate,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("ec2 provider: %w", err)
		}
		clients = append(clients, c)
	}

	if cfg.AWS.Lambda.Enabled {
		c, err := aws.NewLambdaClient(ctx, region, aws.LambdaOptions{
			GPUTypes:    cfg.AWS.Lambda.GPUTypes,
			Concurrency: cfg.AWS.Lambda.Concurrency,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("lambda provider: %w", err)
		}
		clients = append(clients, c)
	}

	var mock *provider.Mock
	if cfg.Mock.Enabled {
		gpus := make([]string, 0, len(cfg.Mock.GPUTypes))
		for _, g := range cfg.Mock.GPUTypes {
			gpus = append(gpus, utils.NormalizeGPUType(g))
		}
		mock = provider.NewMock(cfg.Mock.Name, provider.Kind(cfg.Mock.Kind), gpus...)
		clients = append(clients, mock)
	}

	if len(clients) == 0 {
		return nil, nil, fmt.Errorf("no providers enabled")
	}
	return clients, mock, nil
}

// bootstrapInstances binds the configured instances and registers every
// known binding, including those persisted by earlier runs.
// eventSource reads journaled pause events, newest first
type eventSource interface {
	Events(ctx context.Context, instanceID string, limit int) ([]models.PauseEvent, error)
}

func bootstrapInstances(ctx context.Context, cfg config.Config, region string, orch *orchestrator.Orchestrator,
	catalog orchestrator.Catalog, journal eventSource, engine *autopause.Engine, mock *provider.Mock, logger zerolog.Logger) (int, error) {
	for _, inst := range cfg.Instances {
		instRegion := inst.Region
		if instRegion == "" {
			instRegion = region
		}
		if _, err := orch.Bind(ctx, bindingFor(inst, instRegion)); err != nil {
			return 0, fmt.Errorf("bind %s: %w", inst.ID, err)
		}
	}

	bindings, err := catalog.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list bindings: %w", err)
	}

	registered := 0
	for _, b := range bindings {
		if _, err := orch.Provider(b.Provider); err != nil {
			logger.Warn().Str("instance", b.InstanceID).Str("provider", b.Provider).
				Msg("Skipping binding for disabled provider")
			continue
		}
		events, err := journal.Events(ctx, b.InstanceID, 0)
		if err != nil {
			return registered, fmt.Errorf("read journal of %s: %w", b.InstanceID, err)
		}
		if mock != nil && b.Provider == mock.Name() {
			mock.AddInstance(b.InstanceID, 0)
			if len(events) > 0 && events[0].Kind == models.PauseEventPause {
				_ = mock.Pause(ctx, b.InstanceID)
			}
		}
		if err := engine.Restore(ctx, b.InstanceID, b.OwnerID, events); err != nil {
			return registered, fmt.Errorf("register %s: %w", b.InstanceID, err)
		}
		registered++
	}
	return registered, nil
}
