package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/younsl/autopaused/internal/autopause"
	"github.com/younsl/autopaused/internal/config"
	"github.com/younsl/autopaused/internal/logging"
	"github.com/younsl/autopaused/internal/models"
	"github.com/younsl/autopaused/internal/server"
	"github.com/younsl/autopaused/internal/store"
	"github.com/younsl/autopaused/internal/version"
	"github.com/younsl/autopaused/pkg/orchestrator"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the AutoPause daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	logger.Info().Str("version", version.Get().Version).Str("deployment", cfg.Deployment.Context).Msg("Starting autopaused")

	st, err := store.Open(cfg.Store.Dir)
	if err != nil {
		return err
	}
	defer st.Close()

	region := resolveRegion(ctx, cfg)
	prices := newPricingClient(ctx, cfg, logger)

	clients, mock, err := buildProviders(ctx, cfg, region)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(clients, orchestrator.Options{
		Policy:  cfg.Policy(),
		Catalog: st,
		Rates:   prices,
		Timeout: cfg.AutoPause.ProviderTimeout.Duration,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	engine := autopause.New(cfg.Engine(), orch, logger, autopause.WithJournal(st))

	n, err := bootstrapInstances(ctx, cfg, region, orch, st, st, engine, mock, logger)
	if err != nil {
		return err
	}
	logger.Info().Str("region", region).Strs("providers", orch.Providers()).Int("instances", n).Msg("Providers ready")

	engine.Start(ctx)
	defer engine.Stop()

	errCh := make(chan error, 1)
	if cfg.Server.Listen != "" {
		srv := server.New(engine, logger)
		srv.EnableMetrics()
		srv.SetJournal(st)
		go func() { errCh <- srv.ListenAndServe(ctx, cfg.Server.Listen) }()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logAnalytics(logger, engine.GetAnalytics())
	logger.Info().Msg("Shutting down")
	return nil
}

func logAnalytics(logger zerolog.Logger, a models.Analytics) {
	logger.Info().
		Int("monitored", a.MonitoredCount).
		Int("paused", a.PausedCount).
		Float64("savings", a.TotalSavingsAllTime).
		Float64("pause_hours", a.TotalPauseHours).
		Msg("AutoPause summary")
}
