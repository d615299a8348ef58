// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package admin serves the operator HTTP surface of a running service:
// manual reload, health, ad-hoc retrieval, and the current usage counters.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/pdiddy/scamguard/internal/embed"
	"github.com/pdiddy/scamguard/internal/knowledge"
	"github.com/pdiddy/scamguard/internal/usage"
	"github.com/pdiddy/scamguard/pkg/types"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:8089"

// Engine is the subset of knowledge.Engine the server uses.
type Engine interface {
	Rebuild(ctx context.Context, opts knowledge.RebuildOptions) (*knowledge.RebuildResult, error)
	Retrieve(ctx context.Context, query string, k int) ([]types.Match, error)
	State() knowledge.State
	Snapshot() *knowledge.Snapshot
}

// StatsSource reports usage counters without resetting them.
type StatsSource interface {
	Stats() usage.Stats
}

// Response is the JSON envelope of every endpoint.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReloadResult is the data returned by POST /reload.
type ReloadResult struct {
	Fingerprint string  `json:"fingerprint"`
	Items       int     `json:"items"`
	BuildID     string  `json:"build_id"`
	FromCache   bool    `json:"from_cache"`
	DurationMS  float64 `json:"duration_ms"`
}

// Health is the data returned by GET /healthz.
type Health struct {
	State       string    `json:"state"`
	Items       int       `json:"items"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Model       string    `json:"model,omitempty"`
	BuildID     string    `json:"build_id,omitempty"`
	BuiltAt     time.Time `json:"built_at,omitempty"`
}

// Server is the admin HTTP server.
type Server struct {
	router *mux.Router
	server *http.Server
	engine Engine
	stats  StatsSource
	logger *slog.Logger
}

// New builds the server. Nothing listens until ListenAndServe.
func New(cfg types.AdminConfig, engine Engine, stats StatsSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	s := &Server{
		router: mux.NewRouter(),
		engine: engine,
		stats:  stats,
		logger: logger,
	}
	s.routes()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost", "http://127.0.0.1"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.server = &http.Server{
		Addr:              addr,
		Handler:           c.Handler(s.router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/retrieve", s.handleRetrieve).Methods(http.MethodGet)
	s.router.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.server.Addr }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("admin server listening", "addr", s.server.Addr)
		errc <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("admin server stopping")
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	// A started rebuild runs to completion even if the caller goes away.
	res, err := s.engine.Rebuild(context.WithoutCancel(r.Context()), knowledge.RebuildOptions{Force: force})
	if err != nil {
		s.logger.Warn("manual reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("manual reload complete", "items", res.Snapshot.Size(), "from_cache", res.FromCache)
	writeJSON(w, http.StatusOK, ReloadResult{
		Fingerprint: res.Snapshot.Fingerprint,
		Items:       res.Snapshot.Size(),
		BuildID:     res.Snapshot.BuildID,
		FromCache:   res.FromCache,
		DurationMS:  float64(res.Duration.Microseconds()) / 1000,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := Health{State: s.engine.State().String()}
	snap := s.engine.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, h)
		return
	}
	h.Items = snap.Size()
	h.Fingerprint = snap.Fingerprint
	h.Model = snap.Model
	h.BuildID = snap.BuildID
	h.BuiltAt = snap.BuiltAt
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "k must be a non-negative integer")
			return
		}
		k = n
	}

	matches, err := s.engine.Retrieve(r.Context(), q, k)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, embed.ErrEmbeddingFailure) {
			status = http.StatusBadGateway
		}
		s.logger.Warn("admin retrieve failed", "error", err)
		writeError(w, status, err.Error())
		return
	}
	if matches == nil {
		matches = []types.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	stats := s.stats.Stats()
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(usage.Report(stats)))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Success: status < 400, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Error: msg})
}
