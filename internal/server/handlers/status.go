package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/status"
)

// StatusHandlers serves the aggregate status endpoint backing the
// console dashboard.
type StatusHandlers struct {
	status *status.Store
}

// NewStatusHandlers creates new status handlers.
func NewStatusHandlers(statusStore *status.Store) *StatusHandlers {
	return &StatusHandlers{status: statusStore}
}

// Get handles GET /api/status.
func (h *StatusHandlers) Get(w http.ResponseWriter, r *http.Request) {
	counts, err := h.status.Counts(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute status counts")
		InternalError(w, "Failed to compute status")
		return
	}

	JSON(w, http.StatusOK, counts)
}

// GetTask handles GET /api/status/{id}.
func (h *StatusHandlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	taskStatus, err := h.status.Status(r.Context(), id)
	if err != nil {
		NotFound(w, "Task not found")
		return
	}

	JSON(w, http.StatusOK, taskStatus)
}
