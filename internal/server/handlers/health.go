package handlers

import (
	"net/http"

	"github.com/reelsync/reelsync/internal/database"
)

// HealthHandlers serves liveness and readiness checks.
type HealthHandlers struct {
	db      *database.DB
	version string
}

// NewHealthHandlers creates new health handlers.
func NewHealthHandlers(db *database.DB, version string) *HealthHandlers {
	return &HealthHandlers{db: db, version: version}
}

// Health handles GET /health.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		JSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.version,
	})
}
