package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store  domain.KVStore
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store domain.KVStore, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{store: store, logger: logger}
}

// HealthResponse represents the health status response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /healthz
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /readyz. It is ready once session storage answers.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	status, code := "ready", http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		checks["storage"] = "error: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	writeJSON(w, code, ReadinessResponse{Status: status, Checks: checks})
	h.logger.Debug("readiness check",
		slog.String("status", status),
		slog.String("storage", checks["storage"]),
	)
}
