package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/memoro/internal/common"
	"github.com/ternarybob/memoro/internal/interfaces"
	"github.com/ternarybob/memoro/internal/services/status"
)

// StatusHandler serves health and status endpoints.
type StatusHandler struct {
	status *status.Service
	index  interfaces.VectorIndex
	logger arbor.ILogger
}

func NewStatusHandler(statusService *status.Service, index interfaces.VectorIndex, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		status: statusService,
		index:  index,
		logger: logger,
	}
}

// GetStatusHandler handles GET /api/status with the full snapshot.
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, h.status.GetStatus(r.Context()))
}

// HealthHandler handles GET /health, a cheap liveness probe.
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"index_size": h.index.Size(),
	})
}

// VersionHandler handles GET /api/version.
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetFullVersion(),
	})
}

// NotFoundHandler is the fallback for unmatched /api/ routes.
func (h *StatusHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "Not found")
}
