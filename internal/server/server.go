// Package server exposes read-only operational endpoints: health,
// Prometheus metrics and AutoPause savings analytics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/younsl/autopaused/internal/models"
	"github.com/younsl/autopaused/internal/registry"
	"github.com/younsl/autopaused/internal/version"
)

// Engine is the read side of the AutoPause engine
type Engine interface {
	GetAnalytics() models.Analytics
	GetSavings(instanceID string) (models.SavingsReport, error)
	ListSavings() []models.SavingsReport
	GetAggregateSavings(ownerID string) float64
}

// Journal is the read side of the pause/resume journal
type Journal interface {
	Events(ctx context.Context, instanceID string, limit int) ([]models.PauseEvent, error)
	OwnerSavings(ctx context.Context, ownerID string) ([]models.OwnerSavings, error)
}

// Server is the ops HTTP server.
type Server struct {
	engine         Engine
	journal        Journal // nil disables journal routes
	logger         zerolog.Logger
	metricsEnabled bool
}

// New creates a new Server.
func New(engine Engine, logger zerolog.Logger) *Server {
	return &Server{
		engine: engine,
		logger: logger.With().Str("component", "server").Logger(),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetJournal enables the journal-backed routes.
func (s *Server) SetJournal(j Journal) { s.journal = j }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version.Get().Version,
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/analytics", s.handleAnalytics)
		r.Get("/instances", s.handleListInstances)
		r.Get("/instances/{id}/savings", s.handleInstanceSavings)
		r.Get("/owners/{owner}/savings", s.handleOwnerSavings)

		if s.journal != nil {
			r.Get("/instances/{id}/events", s.handleInstanceEvents)
			r.Get("/owners", s.handleListOwners)
		}
	})

	return r
}

// ListenAndServe serves Handler on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// ─── Handlers ───────────────────────────────────────────────────────────────

type analyticsResponse struct {
	MonitoredCount            int     `json:"monitored_count"`
	PausedCount               int     `json:"paused_count"`
	TotalSavingsAllTime       float64 `json:"total_savings_all_time"`
	TotalPauseHours           float64 `json:"total_pause_hours"`
	AverageSavingsPerInstance float64 `json:"average_savings_per_instance"`
	PauseEfficiencyPercent    float64 `json:"pause_efficiency_percent"`
}

type savingsResponse struct {
	InstanceID       string     `json:"instance_id"`
	OwnerID          string     `json:"owner_id"`
	TotalSavings     float64    `json:"total_savings"`
	TotalPausedHours float64    `json:"total_paused_hours"`
	PauseCount       int        `json:"pause_count"`
	CurrentPhase     string     `json:"current_phase"`
	LastActiveAt     time.Time  `json:"last_active_at"`
	LastPausedAt     *time.Time `json:"last_paused_at,omitempty"`
}

type eventResponse struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Reason        string    `json:"reason,omitempty"`
	At            time.Time `json:"at"`
	HourlyRate    float64   `json:"hourly_rate"`
	PausedSeconds float64   `json:"paused_seconds,omitempty"`
	Savings       float64   `json:"savings,omitempty"`
}

type ownerResponse struct {
	OwnerID       string     `json:"owner_id"`
	InstanceCount int        `json:"instance_count"`
	PauseCount    int        `json:"pause_count"`
	PausedHours   float64    `json:"paused_hours"`
	Savings       float64    `json:"savings"`
	LastResumeAt  *time.Time `json:"last_resume_at,omitempty"`
}

func toSavingsResponse(r models.SavingsReport) savingsResponse {
	return savingsResponse{
		InstanceID:       r.InstanceID,
		OwnerID:          r.OwnerID,
		TotalSavings:     r.TotalSavings,
		TotalPausedHours: r.TotalPausedHours,
		PauseCount:       r.PauseCount,
		CurrentPhase:     string(r.CurrentPhase),
		LastActiveAt:     r.LastActiveAt,
		LastPausedAt:     r.LastPausedAt,
	}
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	a := s.engine.GetAnalytics()
	writeJSON(w, http.StatusOK, analyticsResponse{
		MonitoredCount:            a.MonitoredCount,
		PausedCount:               a.PausedCount,
		TotalSavingsAllTime:       a.TotalSavingsAllTime,
		TotalPauseHours:           a.TotalPauseHours,
		AverageSavingsPerInstance: a.AverageSavingsPerInstance,
		PauseEfficiencyPercent:    a.PauseEfficiencyPercent,
	})
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	reports := s.engine.ListSavings()
	out := make([]savingsResponse, 0, len(reports))
	for _, rep := range reports {
		out = append(out, toSavingsResponse(rep))
	}
	writeJSON(w, http.StatusOK, map[string]any{"instances": out})
}

func (s *Server) handleInstanceSavings(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.GetSavings(chi.URLParam(r, "id"))
	if errors.Is(err, registry.ErrNotRegistered) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toSavingsResponse(report))
}

func (s *Server) handleOwnerSavings(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	writeJSON(w, http.StatusOK, map[string]any{
		"owner_id":      owner,
		"total_savings": s.engine.GetAggregateSavings(owner),
	})
}

func (s *Server) handleInstanceEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := s.journal.Events(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read journal")
		writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, eventResponse{
			ID:            ev.ID,
			Kind:          string(ev.Kind),
			Reason:        ev.Reason,
			At:            ev.At,
			HourlyRate:    ev.HourlyRate,
			PausedSeconds: ev.PausedSeconds,
			Savings:       ev.Savings,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (s *Server) handleListOwners(w http.ResponseWriter, r *http.Request) {
	owners, err := s.journal.OwnerSavings(r.Context(), "")
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read journal")
		writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}

	out := make([]ownerResponse, 0, len(owners))
	for _, o := range owners {
		out = append(out, ownerResponse{
			OwnerID:       o.OwnerID,
			InstanceCount: o.InstanceCount,
			PauseCount:    o.PauseCount,
			PausedHours:   o.PausedHours,
			Savings:       o.Savings,
			LastResumeAt:  o.LastResumeAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"owners": out})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
