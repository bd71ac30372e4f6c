// Package autopause runs the control loop that pauses idle GPU instances
// and books the savings when they are resumed.
package autopause

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/younsl/autopaused/internal/idle"
	"github.com/younsl/autopaused/internal/metrics"
	"github.com/younsl/autopaused/internal/models"
	"github.com/younsl/autopaused/internal/registry"
	"github.com/younsl/autopaused/pkg/orchestrator"
	"github.com/younsl/autopaused/pkg/provider"
	"github.com/younsl/autopaused/pkg/utils"
)

// Pause reasons recorded in the journal and in metrics
const (
	ReasonIdle   = "idle"
	ReasonManual = "manual"
)

// Orchestrator is the provider-facing side of the engine
type Orchestrator interface {
	Knows(ctx context.Context, instanceID string) bool
	GetMetrics(ctx context.Context, instanceID string) (provider.Metrics, error)
	Pause(ctx context.Context, instanceID string) error
	Resume(ctx context.Context, instanceID string) error
	HourlyRate(ctx context.Context, instanceID string) (float64, error)
}

// Journal receives an event for every successful pause and resume
type Journal interface {
	Record(ctx context.Context, ev models.PauseEvent) error
}

type nopJournal struct{}

func (nopJournal) Record(context.Context, models.PauseEvent) error { return nil }

// Config holds engine configuration.
type Config struct {
	CheckInterval     time.Duration
	IdleThreshold     time.Duration // dwell time below the usage threshold before pausing
	GPUUsageThreshold float64       // percent; samples at or above are active
	HistoryRetention  time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		CheckInterval:     30 * time.Second,
		IdleThreshold:     120 * time.Second,
		GPUUsageThreshold: 5.0,
		HistoryRetention:  10 * time.Minute,
	}
}

// Option customizes an Engine
type Option func(*Engine)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithJournal records pause and resume events to j
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithRegistry uses reg instead of a fresh registry
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) { e.reg = reg }
}

// Engine supervises registered instances. It is safe for concurrent use.
type Engine struct {
	cfg     Config
	orch    Orchestrator
	reg     *registry.Registry
	journal Journal
	logger  zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex // guards cancel and done, serializes Start/Stop
	cancel context.CancelFunc
	done   chan struct{} // closed when the loop returns
	wg     sync.WaitGroup
}

// New creates an Engine. Zero config fields take their defaults.
func New(cfg Config, orch Orchestrator, logger zerolog.Logger, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = def.IdleThreshold
	}
	if cfg.GPUUsageThreshold <= 0 {
		cfg.GPUUsageThreshold = def.GPUUsageThreshold
	}
	if cfg.HistoryRetention <= 0 {
		cfg.HistoryRetention = def.HistoryRetention
	}

	e := &Engine{
		cfg:     cfg,
		orch:    orch,
		reg:     registry.New(),
		journal: nopJournal{},
		logger:  logger.With().Str("component", "autopause").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) thresholds() idle.Thresholds {
	return idle.Thresholds{
		GPUUsagePercent: e.cfg.GPUUsageThreshold,
		IdleDuration:    e.cfg.IdleThreshold,
	}
}

// Start runs the monitoring loop until ctx is done or Stop is called.
// The first check runs immediately. Calling Start while running is a no-op;
// a loop that ended with its ctx can be started again.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		if !e.exited() {
			return
		}
		e.shutdown()
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	e.logger.Info().
		Dur("check_interval", e.cfg.CheckInterval).
		Dur("idle_threshold", e.cfg.IdleThreshold).
		Float64("gpu_usage_threshold", e.cfg.GPUUsageThreshold).
		Msg("Starting AutoPause engine")

	e.wg.Add(1)
	go e.run(runCtx, e.done)
}

// Stop cancels the loop and every in-flight check, and waits for them to
// return. A check whose provider call already completed keeps its result.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel == nil {
		return
	}
	e.shutdown()

	e.logger.Info().Msg("AutoPause engine stopped")
}

// shutdown cancels the loop and waits for it and its checks. Callers hold mu.
func (e *Engine) shutdown() {
	e.cancel()
	e.wg.Wait()
	e.cancel = nil
	e.done = nil
}

// exited reports whether the loop returned on its own. Callers hold mu.
func (e *Engine) exited() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Running reports whether the monitoring loop is running
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil && !e.exited()
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer e.wg.Done()
	defer close(done)

	ticker := time.NewTicker(e.cfg.CheckInterval)
	defer ticker.Stop()

	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick dispatches one check per registered instance. An instance whose
// previous check is still running is skipped.
func (e *Engine) tick(ctx context.Context) {
	for _, id := range e.reg.IDs() {
		release, ok := e.reg.BeginCheck(id)
		if !ok {
			metrics.SkippedChecks.WithLabelValues("in_flight").Inc()
			e.logger.Debug().Str("instance", id).Msg("Previous check still running, skipping")
			continue
		}

		e.wg.Add(1)
		go func(id string) {
			defer e.wg.Done()
			defer release()
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error().
						Interface("panic", r).
						Str("instance", id).
						Msg("Instance check panicked")
				}
			}()
			e.check(ctx, id)
		}(id)
	}
}

// check samples one instance and acts on the detector's verdict. Errors are
// logged and absorbed; the next tick retries.
func (e *Engine) check(ctx context.Context, instanceID string) {
	start := time.Now()
	defer func() { metrics.CheckDuration.Observe(time.Since(start).Seconds()) }()

	var paused *models.PauseEvent
	err := e.reg.Do(ctx, instanceID, func(ctx context.Context, rec *models.InstanceRecord) error {
		if rec.Phase == models.PhasePaused {
			return nil
		}

		m, err := e.orch.GetMetrics(ctx, instanceID)
		if err != nil {
			metrics.MetricsUnavailable.Inc()
			return err
		}
		if m.Status != provider.StatusRunning {
			metrics.SkippedChecks.WithLabelValues("not_running").Inc()
			e.logger.Debug().Str("instance", instanceID).Str("status", string(m.Status)).Msg("Instance not running, skipping")
			return nil
		}

		s := models.Sample{At: e.now(), GPUUtilizationPercent: m.GPUUtilizationPercent}
		rec.AddSample(s, e.cfg.HistoryRetention)

		d := idle.Evaluate(*rec, s, e.thresholds())
		d.Apply(rec)

		e.logger.Debug().
			Str("instance", instanceID).
			Float64("gpu_utilization", s.GPUUtilizationPercent).
			Str("signal", d.Signal.String()).
			Str("phase", string(rec.Phase)).
			Msg("Instance checked")

		if d.Signal != idle.SignalConfirmPause {
			return nil
		}
		ev, err := e.pause(ctx, rec, ReasonIdle)
		paused = ev
		return err
	})
	e.commit(ctx, paused, err)

	switch {
	case err == nil:
	case errors.Is(err, registry.ErrCheckDiscarded), errors.Is(err, registry.ErrNotRegistered):
		e.logger.Debug().Str("instance", instanceID).Msg("Check discarded")
	case ctx.Err() != nil:
		e.logger.Debug().Err(err).Str("instance", instanceID).Msg("Check cancelled")
	case errors.Is(err, orchestrator.ErrMetricsUnavailable):
		e.logger.Warn().Err(err).Str("instance", instanceID).Msg("Metrics unavailable, skipping tick")
	default:
		e.logger.Warn().Err(err).Str("instance", instanceID).Msg("Automatic pause failed, will retry")
	}
	e.updateGauges()
}

// pause pauses the instance through the orchestrator and, only on success,
// moves the record to Paused and returns the event to journal once the
// record is published. A failure leaves the phase untouched.
func (e *Engine) pause(ctx context.Context, rec *models.InstanceRecord, reason string) (*models.PauseEvent, error) {
	rate, err := e.orch.HourlyRate(ctx, rec.InstanceID)
	if err != nil {
		metrics.PauseFailures.WithLabelValues(reason).Inc()
		return nil, fmt.Errorf("%w: %s: %w", orchestrator.ErrPauseFailed, rec.InstanceID, err)
	}
	if err := e.orch.Pause(ctx, rec.InstanceID); err != nil {
		metrics.PauseFailures.WithLabelValues(reason).Inc()
		return nil, err
	}

	now := e.now()
	rec.Phase = models.PhasePaused
	rec.IdleCandidateSince = nil
	rec.LastPausedAt = &now
	rec.PauseCount++
	rec.HourlyRateAtPause = rate

	metrics.Pauses.WithLabelValues(reason).Inc()
	e.logger.Info().
		Str("instance", rec.InstanceID).
		Str("owner", rec.OwnerID).
		Str("reason", reason).
		Float64("hourly_rate", rate).
		Msg("Instance paused")

	return &models.PauseEvent{
		Kind:       models.PauseEventPause,
		InstanceID: rec.InstanceID,
		OwnerID:    rec.OwnerID,
		Reason:     reason,
		At:         now,
		HourlyRate: rate,
	}, nil
}

// commit journals ev once its record change is published. The write
// outlives ctx: the provider already acted.
func (e *Engine) commit(ctx context.Context, ev *models.PauseEvent, err error) {
	if ev == nil || errors.Is(err, registry.ErrCheckDiscarded) || errors.Is(err, registry.ErrNotRegistered) {
		return
	}
	e.record(context.WithoutCancel(ctx), *ev)
}

func (e *Engine) record(ctx context.Context, ev models.PauseEvent) {
	if err := e.journal.Record(ctx, ev); err != nil {
		e.logger.Error().Err(err).Str("instance", ev.InstanceID).Str("kind", string(ev.Kind)).Msg("Failed to journal event")
	}
}

// Register puts an instance under supervision at phase Active. The
// instance must be bound in the orchestrator. Registering twice is a no-op.
func (e *Engine) Register(ctx context.Context, instanceID, ownerID string) error {
	return e.Restore(ctx, instanceID, ownerID, nil)
}

// Restore registers an instance with the state replayed from its journal
// events, newest first. An instance whose last event is a pause comes back
// Paused with the rate captured at that pause, so it can be resumed and
// its savings booked. Restoring a registered instance is a no-op.
func (e *Engine) Restore(ctx context.Context, instanceID, ownerID string, events []models.PauseEvent) error {
	if instanceID == "" || ownerID == "" {
		return fmt.Errorf("%w: instance %q owner %q", ErrInvalidID, instanceID, ownerID)
	}
	if !e.orch.Knows(ctx, instanceID) {
		return fmt.Errorf("%w: %s", orchestrator.ErrUnknownInstance, instanceID)
	}

	now := e.now()
	rec := models.InstanceRecord{
		InstanceID:   instanceID,
		OwnerID:      ownerID,
		Phase:        models.PhaseActive,
		LastActiveAt: now,
		RegisteredAt: now,
	}
	for i := len(events) - 1; i >= 0; i-- {
		replay(&rec, events[i])
	}

	if e.reg.Add(rec) {
		e.logger.Info().
			Str("instance", instanceID).
			Str("owner", ownerID).
			Str("phase", string(rec.Phase)).
			Int("pause_count", rec.PauseCount).
			Msg("Instance registered")
		e.updateGauges()
	}
	return nil
}

func replay(rec *models.InstanceRecord, ev models.PauseEvent) {
	if ev.InstanceID != rec.InstanceID {
		return
	}
	switch ev.Kind {
	case models.PauseEventPause:
		at := ev.At
		rec.Phase = models.PhasePaused
		rec.LastPausedAt = &at
		rec.HourlyRateAtPause = ev.HourlyRate
		rec.PauseCount++
	case models.PauseEventResume:
		rec.Phase = models.PhaseActive
		rec.CumulativePausedSeconds += ev.PausedSeconds
		rec.CumulativeSavings += ev.Savings
	}
}

// Unregister stops supervising an instance and cancels its in-flight
// check. Unknown instances are ignored.
func (e *Engine) Unregister(instanceID string) {
	if e.reg.Remove(instanceID) {
		e.logger.Info().Str("instance", instanceID).Msg("Instance unregistered")
		e.updateGauges()
	}
}

// ForcePause pauses an Active or PauseCandidate instance without waiting
// for the dwell time.
func (e *Engine) ForcePause(ctx context.Context, instanceID string) error {
	var paused *models.PauseEvent
	err := e.reg.Do(ctx, instanceID, func(ctx context.Context, rec *models.InstanceRecord) error {
		if rec.Phase == models.PhasePaused {
			return fmt.Errorf("%w: %s is already paused", ErrInvalidState, instanceID)
		}
		ev, err := e.pause(ctx, rec, ReasonManual)
		paused = ev
		return err
	})
	e.commit(ctx, paused, err)
	e.updateGauges()
	return err
}

// Resume restarts a Paused instance and books the savings of the pause:
// paused seconds / 3600 * the hourly rate captured at pause time.
func (e *Engine) Resume(ctx context.Context, instanceID string) error {
	var resumed *models.PauseEvent
	err := e.reg.Do(ctx, instanceID, func(ctx context.Context, rec *models.InstanceRecord) error {
		if rec.Phase != models.PhasePaused {
			return fmt.Errorf("%w: %s is %s, not paused", ErrInvalidState, instanceID, rec.Phase)
		}
		if err := e.orch.Resume(ctx, instanceID); err != nil {
			return err
		}

		now := e.now()
		var paused time.Duration
		if rec.LastPausedAt != nil {
			paused = max(now.Sub(*rec.LastPausedAt), 0)
		}
		pausedSeconds := paused.Seconds()
		savings := utils.CostForDuration(paused, rec.HourlyRateAtPause)

		rec.CumulativePausedSeconds += pausedSeconds
		rec.CumulativeSavings += savings
		rec.Phase = models.PhaseActive
		rec.IdleCandidateSince = nil
		rec.LastActiveAt = now

		metrics.Resumes.Inc()
		metrics.SavingsDollars.Add(savings)
		e.logger.Info().
			Str("instance", instanceID).
			Float64("paused_seconds", pausedSeconds).
			Float64("savings", savings).
			Msg("Instance resumed")

		resumed = &models.PauseEvent{
			Kind:          models.PauseEventResume,
			InstanceID:    instanceID,
			OwnerID:       rec.OwnerID,
			At:            now,
			HourlyRate:    rec.HourlyRateAtPause,
			PausedSeconds: pausedSeconds,
			Savings:       savings,
		}
		return nil
	})
	e.commit(ctx, resumed, err)
	e.updateGauges()
	return err
}

// GetSavings returns the savings projection of one instance
func (e *Engine) GetSavings(instanceID string) (models.SavingsReport, error) {
	rec, ok := e.reg.Get(instanceID)
	if !ok {
		return models.SavingsReport{}, fmt.Errorf("%s: %w", instanceID, registry.ErrNotRegistered)
	}
	return savingsReport(rec), nil
}

// ListSavings returns the savings projection of every instance, ordered by ID
func (e *Engine) ListSavings() []models.SavingsReport {
	snap := e.reg.Snapshot()
	out := make([]models.SavingsReport, 0, len(snap))
	for _, rec := range snap {
		out = append(out, savingsReport(rec))
	}
	return out
}

func savingsReport(rec models.InstanceRecord) models.SavingsReport {
	return models.SavingsReport{
		InstanceID:       rec.InstanceID,
		OwnerID:          rec.OwnerID,
		TotalSavings:     rec.CumulativeSavings,
		TotalPausedHours: rec.CumulativePausedSeconds / 3600,
		PauseCount:       rec.PauseCount,
		CurrentPhase:     rec.Phase,
		LastActiveAt:     rec.LastActiveAt,
		LastPausedAt:     rec.LastPausedAt,
	}
}

// GetAggregateSavings sums booked savings over an owner's instances
func (e *Engine) GetAggregateSavings(ownerID string) float64 {
	var total float64
	for _, rec := range e.reg.Snapshot() {
		if rec.OwnerID == ownerID {
			total += rec.CumulativeSavings
		}
	}
	return total
}

// GetAnalytics summarises every supervised instance
func (e *Engine) GetAnalytics() models.Analytics {
	var a models.Analytics
	var pausedSeconds float64

	for _, rec := range e.reg.Snapshot() {
		a.MonitoredCount++
		if rec.Phase == models.PhasePaused {
			a.PausedCount++
		}
		a.TotalSavingsAllTime += rec.CumulativeSavings
		pausedSeconds += rec.CumulativePausedSeconds
	}

	a.TotalPauseHours = pausedSeconds / 3600
	a.AverageSavingsPerInstance = a.TotalSavingsAllTime / float64(max(a.MonitoredCount, 1))
	if a.MonitoredCount > 0 {
		a.PauseEfficiencyPercent = float64(a.PausedCount) / float64(a.MonitoredCount) * 100
	}
	return a
}

func (e *Engine) updateGauges() {
	a := e.GetAnalytics()
	metrics.MonitoredInstances.Set(float64(a.MonitoredCount))
	metrics.PausedInstances.Set(float64(a.PausedCount))
}
