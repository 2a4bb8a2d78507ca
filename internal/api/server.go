// Package api provides the thin admin HTTP surface: health, Prometheus
// metrics, and a debug state dump. There is no trading HTTP API — every
// external interface this pipeline exposes is inbound stream ingest and
// outbound bundle submission (spec.md §6), never an HTTP order surface.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/kineticshield/core/internal/metrics"
	"github.com/kineticshield/core/pkg/config"
)

// StateProvider supplies the /debug/state snapshot. Implemented by
// cmd/kineticshield's wiring layer, which has visibility into every
// component's exported snapshot method (wallet.Router.Snapshot,
// risk.Shield.Violations, etc); this package stays decoupled from those
// concrete types.
type StateProvider interface {
	DebugState() map[string]interface{}
}

// Server is the admin HTTP surface, grounded on teacher
// internal/api/server.go's gorilla/mux + rs/cors + http.Server shape,
// trimmed to health/metrics/debug only.
type Server struct {
	logger     *zap.Logger
	cfg        config.AdminConfig
	router     *mux.Router
	httpServer *http.Server
	registry   *metrics.Registry
	state      StateProvider
}

// NewServer constructs the admin server. state may be nil if no
// component wiring is available yet (e.g. in tests); /debug/state then
// reports an empty snapshot.
func NewServer(logger *zap.Logger, cfg config.AdminConfig, registry *metrics.Registry, state StateProvider) *Server {
	s := &Server{
		logger:   logger.Named("admin-api"),
		cfg:      cfg,
		router:   mux.NewRouter(),
		registry: registry,
		state:    state,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry.Prometheus(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/debug/state", s.handleDebugState).Methods(http.MethodGet)
}

// Start begins serving on cfg.ListenAddr. Blocks until the server stops;
// run it in its own goroutine.
func (s *Server) Start() error {
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	handler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	s.logger.Info("starting admin server", zap.String("addr", s.cfg.ListenAddr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealthz reports the system-level OR-of-worst health, per spec
// §4.8, as a 200 for Healthy/Degraded and a 503 for Unhealthy so a
// load-balancer health check fails closed.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	report := s.registry.Health()
	w.Header().Set("Content-Type", "application/json")
	if report.System == metrics.HealthUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(report)
}

// handleDebugState dumps the operator-facing snapshot: wallet pool,
// shield state, and whatever else the wiring layer chooses to expose.
func (s *Server) handleDebugState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.state == nil {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{})
		return
	}
	_ = json.NewEncoder(w).Encode(s.state.DebugState())
}
