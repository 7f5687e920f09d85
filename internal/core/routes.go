package core

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"skyview/internal/types"
)

const defaultRequestTimeout = 25 * time.Second

// maxRequestIDLength caps caller-supplied X-Request-Id values; longer or
// non-printable ones are replaced with a generated ID.
const maxRequestIDLength = 128

// The client ID doubles as the session key, so it is masked in logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"X-Client-Id",
}

// MountRoutes installs the global middleware chain, /health, and every
// registrar in V1RouteRegistrars under /v1.
func (s *Server) MountRoutes() {
	s.router.Use(s.globalMiddleware()...)

	s.router.Get("/health", s.HandleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		for _, register := range s.V1RouteRegistrars {
			register(r)
		}
	})
}

// globalMiddleware lists the chain outermost first. Recoverer must stay first
// and the timeout must wrap everything that can reach an upstream provider.
func (s *Server) globalMiddleware() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		s.Recoverer,
		ContextTimeoutMiddleware(s.requestTimeout()),
		RequestIDMiddleware,
		s.SecurityHeadersMiddleware,
		RequestLogger(s.Logger, defaultRedactedHeaders),
		NewCORSMiddleware(s.corsAllowedOrigins()),
		s.MetricsMiddleware,
		CompressionMiddleware(),
	}
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Server.CorsAllowedOrigins) > 0 {
		return s.Config.Server.CorsAllowedOrigins
	}
	return []string{"*"}
}

// ContextTimeoutMiddleware sets a deadline on the request context. Handlers
// that call upstream providers observe it through the context they pass on.
// WebSocket upgrades are long-lived and keep the undecorated context.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if websocket.IsWebSocketUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware reuses a well-formed incoming X-Request-Id or generates
// a 32-character hex ID, and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if !validRequestID(id) {
			id = strings.ReplaceAll(uuid.NewString(), "-", "")
		}

		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(types.WithRequestID(r.Context(), id)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
