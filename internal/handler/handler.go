// Package handler provides HTTP request handlers for the employees API.
package handler

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/employees-api/internal/model"
	"github.com/vyrodovalexey/employees-api/internal/store"
)

// Version is the application version.
const Version = "1.0.0"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status    string `json:"status"`
	Employees *int   `json:"employees,omitempty"`
}

// ProbeHandler serves liveness and readiness probes.
type ProbeHandler struct {
	logger *zap.Logger
	store  store.Store
	ready  atomic.Bool
}

// NewProbeHandler creates a ProbeHandler that reports not ready until
// SetReady(true) is called and the store answers.
func NewProbeHandler(logger *zap.Logger, s store.Store) *ProbeHandler {
	return &ProbeHandler{logger: logger, store: s}
}

// RegisterRoutes registers /health and /ready with the router.
func (h *ProbeHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.ReadyCheck).Methods(http.MethodGet)
}

// SetReady flips the readiness state.
func (h *ProbeHandler) SetReady(ready bool) {
	h.ready.Store(ready)
}

// HealthCheck handles GET /health requests.
func (h *ProbeHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(h.logger, w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: Version,
	})
}

// ReadyCheck handles GET /ready requests.
func (h *ProbeHandler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		writeJSON(h.logger, w, http.StatusServiceUnavailable, ReadyResponse{Status: "not ready"})
		return
	}

	count, err := h.store.Len(r.Context())
	if err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		writeJSON(h.logger, w, http.StatusServiceUnavailable, ReadyResponse{Status: "not ready"})
		return
	}
	writeJSON(h.logger, w, http.StatusOK, ReadyResponse{Status: "ready", Employees: &count})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, data any) {
	if data == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an {"error": message} body with the given status code.
func writeError(logger *zap.Logger, w http.ResponseWriter, status int, message string) {
	writeJSON(logger, w, status, model.ErrorResponse{Error: message})
}
