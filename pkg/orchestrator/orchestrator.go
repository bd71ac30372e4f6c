// Package orchestrator dispatches instance lifecycle operations to the
// provider each instance is bound to, and hides the difference between
// providers that must be stopped explicitly and providers that suspend
// themselves.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/younsl/autopaused/internal/metrics"
	"github.com/younsl/autopaused/internal/models"
	"github.com/younsl/autopaused/pkg/pricing"
	"github.com/younsl/autopaused/pkg/provider"
	"github.com/younsl/autopaused/pkg/utils"
)

// DefaultTimeout bounds every provider call
const DefaultTimeout = 30 * time.Second

// RateResolver prices GPU capacity
type RateResolver interface {
	HourlyRate(ctx context.Context, q pricing.RateQuery) (float64, pricing.PricingSource)
}

// Options configures an Orchestrator. Zero values select defaults.
type Options struct {
	Policy  Policy
	Catalog Catalog
	Rates   RateResolver
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Orchestrator is safe for concurrent use
type Orchestrator struct {
	providers map[string]provider.Client
	ordered   []provider.Client
	policy    Policy
	catalog   Catalog
	rates     RateResolver
	timeout   time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates an Orchestrator over clients. Provider names must be unique.
func New(clients []provider.Client, opts Options) (*Orchestrator, error) {
	o := &Orchestrator{
		providers: make(map[string]provider.Client, len(clients)),
		policy:    opts.Policy,
		catalog:   opts.Catalog,
		rates:     opts.Rates,
		timeout:   opts.Timeout,
		logger:    opts.Logger.With().Str("component", "orchestrator").Logger(),
		now:       time.Now,
	}
	if o.policy == nil {
		o.policy = DefaultPolicy()
	}
	if o.catalog == nil {
		o.catalog = NewMemoryCatalog()
	}
	if o.rates == nil {
		o.rates = pricing.NewClientWithAPI(nil)
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}

	for _, c := range clients {
		if _, dup := o.providers[c.Name()]; dup {
			return nil, fmt.Errorf("duplicate provider %q", c.Name())
		}
		o.providers[c.Name()] = c
		o.ordered = append(o.ordered, c)
	}

	return o, nil
}

// Providers returns the configured provider names, sorted
func (o *Orchestrator) Providers() []string {
	names := make([]string, 0, len(o.providers))
	for name := range o.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider returns a configured provider by name
func (o *Orchestrator) Provider(name string) (provider.Client, error) {
	c, ok := o.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return c, nil
}

// SelectProvider applies the deployment policy to the configured providers
func (o *Orchestrator) SelectProvider(gpuType string, d Deployment) (provider.Client, error) {
	return o.policy.Select(d, utils.NormalizeGPUType(gpuType), o.ordered)
}

// Place selects a provider for a new instance and records the binding.
// Provisioning itself happens elsewhere.
func (o *Orchestrator) Place(ctx context.Context, instanceID, ownerID, gpuType string, d Deployment) (models.Binding, error) {
	c, err := o.SelectProvider(gpuType, d)
	if err != nil {
		return models.Binding{}, err
	}

	return o.Bind(ctx, models.Binding{
		InstanceID: instanceID,
		OwnerID:    ownerID,
		Provider:   c.Name(),
		GPUType:    gpuType,
	})
}

// Bind records an explicit instance to provider binding. A zero hourly
// rate is resolved from pricing; a binding that cannot be priced is rejected.
func (o *Orchestrator) Bind(ctx context.Context, b models.Binding) (models.Binding, error) {
	if b.InstanceID == "" {
		return models.Binding{}, errors.New("binding requires an instance ID")
	}
	c, err := o.Provider(b.Provider)
	if err != nil {
		return models.Binding{}, err
	}

	if b.GPUType == "" && b.InstanceType != "" {
		b.GPUType = utils.GetGPUType(b.InstanceType)
	}
	b.GPUType = utils.NormalizeGPUType(b.GPUType)
	if b.GPUType != "" && !c.SupportsGPU(b.GPUType) {
		return models.Binding{}, fmt.Errorf("%s on %s: %w", b.GPUType, c.Name(), provider.ErrUnsupportedGPU)
	}

	if b.HourlyRate <= 0 {
		rate, err := o.resolveRate(ctx, b, c)
		if err != nil {
			return models.Binding{}, err
		}
		b.HourlyRate = rate
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = o.now()
	}

	if err := o.catalog.Put(ctx, b); err != nil {
		return models.Binding{}, fmt.Errorf("error saving binding for %s: %w", b.InstanceID, err)
	}

	o.logger.Info().
		Str("instance", b.InstanceID).
		Str("owner", b.OwnerID).
		Str("provider", b.Provider).
		Str("gpu", b.GPUType).
		Msg("instance bound")
	return b, nil
}

// Binding returns the binding of an instance
func (o *Orchestrator) Binding(ctx context.Context, instanceID string) (models.Binding, error) {
	return o.catalog.Get(ctx, instanceID)
}

// Knows reports whether the instance is bound to a configured provider
func (o *Orchestrator) Knows(ctx context.Context, instanceID string) bool {
	_, _, err := o.resolve(ctx, instanceID)
	return err == nil
}

func (o *Orchestrator) resolve(ctx context.Context, instanceID string) (models.Binding, provider.Client, error) {
	b, err := o.catalog.Get(ctx, instanceID)
	if err != nil {
		return models.Binding{}, nil, err
	}
	c, err := o.Provider(b.Provider)
	if err != nil {
		return b, nil, err
	}
	return b, c, nil
}

// call runs fn against c under the provider timeout and records it
func (o *Orchestrator) call(ctx context.Context, c provider.Client, op, instanceID string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	metrics.ObserveProviderCall(c.Name(), op, time.Since(start), err)
	if err != nil {
		o.logger.Debug().Err(err).
			Str("provider", c.Name()).
			Str("op", op).
			Str("instance", instanceID).
			Msg("provider call failed")
	}
	return err
}

// GetStatus returns the normalized provider status of an instance
func (o *Orchestrator) GetStatus(ctx context.Context, instanceID string) (provider.Status, error) {
	_, c, err := o.resolve(ctx, instanceID)
	if err != nil {
		return provider.StatusUnknown, err
	}

	var status provider.Status
	err = o.call(ctx, c, "status", instanceID, func(ctx context.Context) error {
		var err error
		status, err = c.GetStatus(ctx, instanceID)
		return err
	})
	if err != nil {
		return provider.StatusUnknown, err
	}
	return normalizeStatus(c, status), nil
}

// GetMetrics returns a normalized utilization sample. Every failure,
// including timeouts and unknown instances, wraps ErrMetricsUnavailable.
func (o *Orchestrator) GetMetrics(ctx context.Context, instanceID string) (provider.Metrics, error) {
	_, c, err := o.resolve(ctx, instanceID)
	if err != nil {
		return provider.Metrics{}, fmt.Errorf("%w: %w", ErrMetricsUnavailable, err)
	}

	var m provider.Metrics
	err = o.call(ctx, c, "metrics", instanceID, func(ctx context.Context) error {
		var err error
		m, err = c.GetMetrics(ctx, instanceID)
		return err
	})
	if err != nil {
		return provider.Metrics{}, fmt.Errorf("%w: %s: %w", ErrMetricsUnavailable, instanceID, err)
	}

	m.Status = normalizeStatus(c, m.Status)
	if m.CollectedAt.IsZero() {
		m.CollectedAt = o.now()
	}
	return m, nil
}

// normalizeStatus reports a self-suspended instance as running, since it
// resumes on the next invocation
func normalizeStatus(c provider.Client, s provider.Status) provider.Status {
	if c.Kind() == provider.KindSelfSuspending && s == provider.StatusSuspended {
		return provider.StatusRunning
	}
	return s
}

// Pause stops a VM-backed instance. Self-suspending providers have no
// pause, so it succeeds without a provider call.
func (o *Orchestrator) Pause(ctx context.Context, instanceID string) error {
	_, c, err := o.resolve(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPauseFailed, err)
	}
	if c.Kind() == provider.KindSelfSuspending {
		return nil
	}

	if err := o.call(ctx, c, "pause", instanceID, func(ctx context.Context) error {
		return c.Pause(ctx, instanceID)
	}); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPauseFailed, instanceID, err)
	}
	return nil
}

// Resume starts a VM-backed instance. Self-suspending providers resume on
// the next invocation, so it succeeds immediately.
func (o *Orchestrator) Resume(ctx context.Context, instanceID string) error {
	_, c, err := o.resolve(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResumeFailed, err)
	}
	if c.Kind() == provider.KindSelfSuspending {
		return nil
	}

	if err := o.call(ctx, c, "resume", instanceID, func(ctx context.Context) error {
		return c.Resume(ctx, instanceID)
	}); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrResumeFailed, instanceID, err)
	}
	return nil
}

// Delete tears down the instance and drops its binding. Deleting an
// instance that is already gone succeeds.
func (o *Orchestrator) Delete(ctx context.Context, instanceID string) error {
	_, c, err := o.resolve(ctx, instanceID)
	if errors.Is(err, ErrUnknownInstance) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}

	err = o.call(ctx, c, "delete", instanceID, func(ctx context.Context) error {
		return c.Delete(ctx, instanceID)
	})
	if err != nil && !errors.Is(err, provider.ErrInstanceNotFound) {
		return fmt.Errorf("%w: %s: %w", ErrDeleteFailed, instanceID, err)
	}

	if err := o.catalog.Delete(ctx, instanceID); err != nil {
		return fmt.Errorf("%w: removing binding for %s: %w", ErrDeleteFailed, instanceID, err)
	}
	o.logger.Info().Str("instance", instanceID).Str("provider", c.Name()).Msg("instance deleted")
	return nil
}

// HourlyRate returns the hourly cost of an instance
func (o *Orchestrator) HourlyRate(ctx context.Context, instanceID string) (float64, error) {
	b, c, err := o.resolve(ctx, instanceID)
	if err != nil {
		return 0, err
	}
	if b.HourlyRate > 0 {
		return b.HourlyRate, nil
	}
	return o.resolveRate(ctx, b, c)
}

// resolveRate prices a binding that carries no rate of its own
func (o *Orchestrator) resolveRate(ctx context.Context, b models.Binding, c provider.Client) (float64, error) {
	rate, source := o.rates.HourlyRate(ctx, pricing.RateQuery{
		ProviderKind: string(c.Kind()),
		GPUType:      b.GPUType,
		InstanceType: b.InstanceType,
		Region:       b.Region,
	})
	if source == pricing.PricingSourceNA || rate <= 0 {
		return 0, fmt.Errorf("%w: %s (gpu %q, type %q on %s)", ErrRateUnavailable, b.InstanceID, b.GPUType, b.InstanceType, c.Name())
	}

	o.logger.Debug().
		Str("instance", b.InstanceID).
		Float64("rate", rate).
		Str("source", string(source)).
		Msg("resolved hourly rate")
	return rate, nil
}

// SavingsPotential compares running a dedicated GPU all month with paying
// serverless rates for activeHours only. Without a dedicated price the
// serverless rate is tripled.
func (o *Orchestrator) SavingsPotential(ctx context.Context, gpuType string, activeHours float64) (models.SavingsEstimate, error) {
	gpuType = utils.NormalizeGPUType(gpuType)

	serverless, source := o.rates.HourlyRate(ctx, pricing.RateQuery{
		ProviderKind: string(provider.KindSelfSuspending),
		GPUType:      gpuType,
	})
	if source == pricing.PricingSourceNA {
		return models.SavingsEstimate{}, fmt.Errorf("no serverless price for GPU %s", gpuType)
	}

	dedicated, source := o.rates.HourlyRate(ctx, pricing.RateQuery{
		ProviderKind: string(provider.KindVM),
		GPUType:      gpuType,
	})
	if source == pricing.PricingSourceNA {
		dedicated = serverless * 3
	}

	est := models.SavingsEstimate{
		GPUType:             gpuType,
		ActiveHoursPerMonth: activeHours,
		DedicatedHourlyRate: dedicated,
		ServerlessRate:      serverless,
		AlwaysOnMonthlyCost: pricing.MonthlyCost(dedicated),
		ActiveMonthlyCost:   serverless * activeHours,
	}
	est.MonthlySavings = est.AlwaysOnMonthlyCost - est.ActiveMonthlyCost
	if est.AlwaysOnMonthlyCost > 0 {
		est.SavingsPercent = est.MonthlySavings / est.AlwaysOnMonthlyCost * 100
	}
	return est, nil
}
