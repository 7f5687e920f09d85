package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds all probes together. A probe still running when it
// expires is reported as timed out.
const healthCheckTimeout = 2 * time.Second

// HealthProbe is one dependency checked by GET /health.
type HealthProbe interface {
	// Name identifies the probe in the response, e.g. "database".
	Name() string

	// Check returns nil when the dependency is usable. It must respect ctx.
	Check(ctx context.Context) error
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

type probeOutcome struct {
	index int
	err   error
}

// HandleHealth runs every probe concurrently and answers 200 when all pass,
// 503 otherwise.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	// Buffered so late probes never block after we stop listening.
	outcomes := make(chan probeOutcome, len(probes))
	for i, probe := range probes {
		go func() {
			outcomes <- probeOutcome{index: i, err: runProbe(ctx, probe)}
		}()
	}

	errs := make([]error, len(probes))
	done := make([]bool, len(probes))
collect:
	for range probes {
		select {
		case o := <-outcomes:
			errs[o.index] = o.err
			done[o.index] = true
		case <-ctx.Done():
			break collect
		}
	}

	resp := healthResponse{
		Status:     "healthy",
		Components: make(map[string]componentStatus, len(probes)),
	}
	for i, probe := range probes {
		status := componentStatus{Status: "healthy"}
		switch {
		case !done[i]:
			status = componentStatus{Status: "unhealthy", Message: "health check timed out"}
		case errs[i] != nil:
			status = componentStatus{Status: "unhealthy", Message: errs[i].Error()}
		}
		if status.Status != "healthy" {
			resp.Status = "unhealthy"
		}
		resp.Components[probe.Name()] = status
	}

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	JSON(w, r, code, resp)
}

// runProbe converts a probe panic into an error.
func runProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			err = fmt.Errorf("probe panicked: %v", rvr)
		}
	}()
	return p.Check(ctx)
}
