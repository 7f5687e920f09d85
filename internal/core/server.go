// Package core provides the HTTP chassis for the skyview API. It creates the
// chi router and enforces cross-cutting concerns (recovery, request IDs,
// logging, CORS, metrics, compression and error envelopes) before requests
// reach the widget handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"skyview/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
type MetricsCollector interface {
	// RecordRequest records API request metrics including latency and count.
	// Uses metric constants MetricAPILatency and MetricAPIRequestCount
	// from the types package.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts a group of handlers under /v1.
type RouteRegistrar func(r chi.Router)

// Server encapsulates all dependencies of the API so tests can inject their
// own.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// HealthProbes are executed concurrently by GET /health.
	HealthProbes []HealthProbe

	// V1RouteRegistrars are populated by main before MountRoutes. This
	// indirection avoids import cycles between core and handler packages.
	V1RouteRegistrars []RouteRegistrar

	// Closers run on Shutdown in registration order (DB pools, flushers).
	Closers []func(ctx context.Context) error

	router *chi.Mux
}

// NewServer initializes dependencies and prepares the router for route
// mounting. The caller mounts routes via MountRoutes after construction.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown runs the registered closers. All closers run even if one fails;
// the first error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var firstErr error
	for _, closeFn := range s.Closers {
		if err := closeFn(ctx); err != nil {
			s.Logger.Error("error closing server resource", "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("closing server resource: %w", err)
			}
		}
	}

	s.Logger.Info("server shutdown complete")
	return firstErr
}
