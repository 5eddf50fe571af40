// Package server exposes run history over an HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazz-dev/availprobe/internal/storage"
)

// Store defines the storage queries the server needs.
type Store interface {
	RecentRuns(ctx context.Context, limit, offset int) ([]storage.Run, int, error)
	GetRun(ctx context.Context, id string) (*storage.Run, error)
	RunSamples(ctx context.Context, runID string) ([]storage.Sample, error)
	StatsByLabel(ctx context.Context, kind string, lastRuns int) ([]storage.LabelStats, error)
}

// Server holds the chi router and its dependencies.
type Server struct {
	store  Store
	target string
	router chi.Router
	logger *slog.Logger
}

// New creates a new Server and registers all routes.
func New(store Store, target string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:  store,
		target: target,
		router: chi.NewRouter(),
		logger: logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/runs", s.handleListRuns)
	r.Get("/api/runs/{id}", s.handleGetRun)
	r.Get("/api/stats", s.handleStats)
}

// --- Response helpers ---

type envelope struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "target": s.target})
}

type runSummary struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Target     string     `json:"target"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	OK         bool       `json:"ok"`
}

func summarize(r storage.Run) runSummary {
	return runSummary{
		ID:         r.ID,
		Kind:       r.Kind,
		Target:     r.Target,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		OK:         r.OK,
	}
}

type runsResponse struct {
	Runs  []runSummary `json:"runs"`
	Total int          `json:"total"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	const maxLimit = 1000

	limit := 50
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset parameter")
			return
		}
		offset = n
	}

	runs, total, err := s.store.RecentRuns(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("RecentRuns", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	summaries := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, summarize(run))
	}
	writeJSON(w, http.StatusOK, runsResponse{Runs: summaries, Total: total})
}

type sampleDetail struct {
	Label      string    `json:"label"`
	ElapsedMs  int64     `json:"elapsed_ms"`
	SizeBytes  int64     `json:"size_bytes"`
	Status     int       `json:"status"`
	Error      string    `json:"error,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

type runDetailResponse struct {
	runSummary
	Samples []sampleDetail `json:"samples"`
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.logger.Error("GetRun", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	samples, err := s.store.RunSamples(r.Context(), id)
	if err != nil {
		s.logger.Error("RunSamples", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	details := make([]sampleDetail, 0, len(samples))
	for _, smp := range samples {
		details = append(details, sampleDetail{
			Label:      smp.Label,
			ElapsedMs:  smp.ElapsedMs,
			SizeBytes:  smp.SizeBytes,
			Status:     smp.Status,
			Error:      smp.Error,
			RecordedAt: smp.RecordedAt,
		})
	}

	writeJSON(w, http.StatusOK, runDetailResponse{
		runSummary: summarize(*run),
		Samples:    details,
	})
}

type labelStatsResponse struct {
	Kind  string               `json:"kind"`
	Runs  int                  `json:"runs"`
	Stats []storage.LabelStats `json:"stats"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "smoke"
	}

	lastRuns := 20
	if v := r.URL.Query().Get("runs"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid runs parameter")
			return
		}
		lastRuns = n
	}

	stats, err := s.store.StatsByLabel(r.Context(), kind, lastRuns)
	if err != nil {
		s.logger.Error("StatsByLabel", "kind", kind, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, labelStatsResponse{Kind: kind, Runs: lastRuns, Stats: stats})
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}
