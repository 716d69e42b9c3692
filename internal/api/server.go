// Package api exposes the dashboard HTTP interface: run history, health,
// and manual run triggers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/paperboydev/paperboy/internal/config"
	"github.com/paperboydev/paperboy/internal/edition"
	"github.com/paperboydev/paperboy/internal/history"
)

// statusWindowDays is the lookback for /v1/status. A week of history is
// enough to answer "did my paper arrive" for a daily edition.
const statusWindowDays = 7

// triggerTimeout bounds a manually triggered run. Browser escalation plus
// retries can take a while on a slow source.
const triggerTimeout = 30 * time.Minute

// Runner executes one edition run. Satisfied by pipeline.Runner.
type Runner interface {
	Run(ctx context.Context, date time.Time, force, dryRun bool) (edition.RunRecord, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Server wires HTTP handlers to the run history and the pipeline.
type Server struct {
	router    chi.Router
	runner    Runner
	histStore history.Store
	clock     Clock
	cfg       config.ServerConfig
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	runner Runner,
	histStore history.Store,
	clock Clock,
	cfg config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner:    runner,
		histStore: histStore,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.AuthEnabled {
		r.Use(apiKeyMiddleware(cfg.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.listRuns)
			r.Post("/", s.triggerRun)
			r.Get("/{date}", s.getRun)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The history store is the only downstream the dashboard depends on.
	if _, err := s.histStore.Recent(r.Context(), 1, s.clock.Now()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "history store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	days := statusWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = parsed
	}
	records, err := s.histStore.Recent(r.Context(), days, s.clock.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if records == nil {
		records = []edition.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": records})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse(edition.DateLayout, chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	lookback := int(s.clock.Now().UTC().Sub(date).Hours()/24) + 1
	if lookback < 1 {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if lookback > 365 {
		lookback = 365
	}
	records, err := s.histStore.Recent(r.Context(), lookback, s.clock.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query runs")
		return
	}
	want := date.Format(edition.DateLayout)
	for _, rec := range records {
		if rec.Date == want {
			writeJSON(w, http.StatusOK, map[string]any{"run": rec})
			return
		}
	}
	writeError(w, http.StatusNotFound, "run not found")
}

type triggerRequest struct {
	Date   string `json:"date"`
	Force  bool   `json:"force"`
	DryRun bool   `json:"dry_run"`
}

func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	date := s.clock.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse(edition.DateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	s.running = true
	s.mu.Unlock()

	// The run outlives the request; the caller polls /v1/runs/{date} for
	// the outcome.
	go func() {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()
		if _, err := s.runner.Run(ctx, date, req.Force, req.DryRun); err != nil {
			s.logger.Error("triggered run failed",
				zap.String("date", date.Format(edition.DateLayout)), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"date":   date.Format(edition.DateLayout),
		"status": "accepted",
	})
}

// dayStatus is one row of the /v1/status readiness report.
type dayStatus struct {
	Date      string `json:"date"`
	Status    string `json:"status"`
	Strategy  string `json:"strategy,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	records, err := s.histStore.Recent(r.Context(), statusWindowDays, s.clock.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query runs")
		return
	}

	// Newest record per date wins; Recent returns newest first.
	byDate := make(map[string]edition.RunRecord, len(records))
	for _, rec := range records {
		if _, seen := byDate[rec.Date]; !seen {
			byDate[rec.Date] = rec
		}
	}

	now := s.clock.Now().UTC()
	days := make([]dayStatus, 0, statusWindowDays)
	delivered := 0
	for i := 0; i < statusWindowDays; i++ {
		date := now.AddDate(0, 0, -i).Format(edition.DateLayout)
		day := dayStatus{Date: date, Status: "missing"}
		if rec, ok := byDate[date]; ok {
			day.Status = string(rec.Status)
			day.Strategy = string(rec.Strategy)
			day.ErrorKind = rec.ErrorKind
			if rec.Status == edition.RunStatusSuccess {
				delivered++
			}
		}
		days = append(days, day)
	}

	overall := "degraded"
	if days[0].Status == string(edition.RunStatusSuccess) {
		overall = "ok"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    overall,
		"delivered": delivered,
		"days":      days,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
