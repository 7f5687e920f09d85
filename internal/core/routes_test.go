package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"skyview/internal/config"
	"skyview/internal/types"
)

// newTestServerForRoutes returns a Server with MountRoutes already called and
// a probe route registered under /v1.
func newTestServerForRoutes(t *testing.T, cfg *config.Config) (*Server, *mockMetricsCollector) {
	t.Helper()

	if cfg == nil {
		cfg = &config.Config{}
	}
	srv, err := NewServer(cfg, discardLogger())
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	mc := &mockMetricsCollector{}
	srv.Metrics = mc

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Get("/probe", func(w http.ResponseWriter, r *http.Request) {
			_, hasDeadline := r.Context().Deadline()
			Data(w, r, http.StatusOK, map[string]any{
				"request_id":   types.GetRequestID(r.Context()),
				"has_deadline": hasDeadline,
			})
		})
		r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
			panic("handler bug")
		})
	})

	srv.MountRoutes()
	return srv, mc
}

func TestMountRoutes_MiddlewareCount(t *testing.T) {
	srv, _ := newTestServerForRoutes(t, nil)

	if got := len(srv.Router().Middlewares()); got != 8 {
		t.Errorf("expected 8 global middleware, got %d", got)
	}
}

func TestMountRoutes_HealthEndpoint(t *testing.T) {
	srv, _ := newTestServerForRoutes(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMountRoutes_UnknownV1Path(t *testing.T) {
	srv, _ := newTestServerForRoutes(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/forecasts", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestMountRoutes_FullChainIntegration(t *testing.T) {
	srv, mc := newTestServerForRoutes(t, &config.Config{
		Server: config.ServerConfig{CorsAllowedOrigins: []string{"https://widget.example"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/probe", nil)
	req.Header.Set("Origin", "https://widget.example")
	req.Header.Set("X-Request-Id", "upstream-id")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", rec.Code, rec.Body.String())
	}
	if want := `{"data":{"has_deadline":true,"request_id":"upstream-id"}}`; rec.Body.String() != want {
		t.Errorf("body: got %s, want %s", rec.Body.String(), want)
	}
	if rec.Header().Get("X-Request-Id") != "upstream-id" {
		t.Error("request ID should be echoed")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://widget.example" {
		t.Error("CORS origin from config should be allowed")
	}
	if len(mc.calls) != 1 || mc.calls[0].endpoint != "/v1/probe" {
		t.Errorf("metrics calls: %+v", mc.calls)
	}
}

func TestMiddlewareOrder_RecovererCatchesPanics(t *testing.T) {
	srv, mc := newTestServerForRoutes(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/panic", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	// Recoverer runs outside RequestID, so the generated header was already set.
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id should be set before the panic")
	}
	// The panic unwinds through Metrics, so nothing is recorded for it.
	if len(mc.calls) != 0 {
		t.Errorf("expected no metrics for a panicking request, got %d", len(mc.calls))
	}
}

func TestRequestTimeout_FromConfig(t *testing.T) {
	srv := &Server{Config: &config.Config{Server: config.ServerConfig{RequestTimeout: 3 * time.Second}}}
	if got := srv.requestTimeout(); got != 3*time.Second {
		t.Errorf("got %v, want 3s", got)
	}

	srv = &Server{}
	if got := srv.requestTimeout(); got != defaultRequestTimeout {
		t.Errorf("got %v, want default %v", got, defaultRequestTimeout)
	}
}

func TestCorsAllowedOrigins_Default(t *testing.T) {
	srv := &Server{Config: &config.Config{}}
	got := srv.corsAllowedOrigins()
	if len(got) != 1 || got[0] != "*" {
		t.Errorf("got %v, want [*]", got)
	}
}

func TestContextTimeoutMiddleware_Cancellation(t *testing.T) {
	mw := ContextTimeoutMiddleware(10 * time.Millisecond)

	var ctxErr error
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			ctxErr = r.Context().Err()
		case <-time.After(time.Second):
			t.Error("context was not cancelled within expected time")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if ctxErr != context.DeadlineExceeded {
		t.Errorf("expected context.DeadlineExceeded, got %v", ctxErr)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var captured string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = types.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if len(captured) != 32 {
		t.Errorf("generated ID should be 32 hex chars, got %q", captured)
	}
	if rec.Header().Get("X-Request-Id") != captured {
		t.Error("response header should carry the generated ID")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "given")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if captured != "given" {
		t.Errorf("incoming ID should be propagated, got %q", captured)
	}
}

func TestRequestIDMiddleware_ReplacesMalformedIDs(t *testing.T) {
	var captured string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = types.GetRequestID(r.Context())
	}))

	for _, given := range []string{"has space", "line\nbreak", strings.Repeat("a", maxRequestIDLength+1)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-Id", given)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if captured == given || len(captured) != 32 {
			t.Errorf("malformed ID %q should be replaced, got %q", given, captured)
		}
	}
}
