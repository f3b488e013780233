package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthSource reports liveness of the simulation pipeline.
type HealthSource interface {
	Running() bool
	Healthy() bool
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	source HealthSource
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler backed by the given source.
func NewHealthHandler(source HealthSource, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{source: source, logger: logHandler(logger, "health")}
}

// HealthCheck responds 200 while market data is flowing and 503 once the feed
// has gone stale or disconnected, so load balancers can route around a dead
// instance.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if !h.source.Healthy() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"running":   h.source.Running(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
