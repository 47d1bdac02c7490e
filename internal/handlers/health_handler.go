package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker is one dependency reported by the health endpoint
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports liveness of the service and its dependencies
type HealthHandler struct {
	version string
	checks  map[string]HealthChecker
	timeout time.Duration
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{
		version: version,
		checks:  checks,
		timeout: 3 * time.Second,
	}
}

// HealthResponse is the body of the health endpoint
type HealthResponse struct {
	Status       string            `json:"status" example:"healthy"`
	Version      string            `json:"version" example:"1.0.0"`
	Dependencies map[string]string `json:"dependencies"`
}

// Health checks every dependency
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:       "healthy",
		Version:      h.version,
		Dependencies: make(map[string]string, len(h.checks)),
	}
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check.HealthCheck(ctx); err != nil {
			slog.Warn("Health check failed", "dependency", name, "error", err)
			resp.Dependencies[name] = "error"
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Dependencies[name] = "ok"
	}
	respondWithJSON(w, status, resp)
}
