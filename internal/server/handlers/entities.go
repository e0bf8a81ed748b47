package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/store"
)

// EntityHandlers handles the library entity endpoints.
type EntityHandlers struct {
	entities *store.Entities
}

// NewEntityHandlers creates new entity handlers.
func NewEntityHandlers(entities *store.Entities) *EntityHandlers {
	return &EntityHandlers{entities: entities}
}

// List handles GET /api/entities.
func (h *EntityHandlers) List(w http.ResponseWriter, r *http.Request) {
	entities, err := h.entities.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list entities")
		InternalError(w, "Failed to list entities")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"entities": entities,
		"count":    len(entities),
	})
}

// Get handles GET /api/entities/{id}.
func (h *EntityHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	entity, err := h.entities.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrEntityNotFound) {
			NotFound(w, "Entity not found")
			return
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to get entity")
		InternalError(w, "Failed to get entity")
		return
	}

	JSON(w, http.StatusOK, entity)
}

// Upsert handles PUT /api/entities/{id}. The import tool pushes its
// library snapshot through this endpoint.
func (h *EntityHandlers) Upsert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var entity store.Entity
	if err := json.NewDecoder(r.Body).Decode(&entity); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	entity.ID = id
	entity.Title = strings.TrimSpace(sanitizer.Sanitize(entity.Title))
	if entity.Title == "" {
		BadRequest(w, "Title is required")
		return
	}

	if err := h.entities.Upsert(r.Context(), &entity); err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to upsert entity")
		InternalError(w, "Failed to save entity")
		return
	}

	JSON(w, http.StatusOK, &entity)
}

// Delete handles DELETE /api/entities/{id}.
func (h *EntityHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.entities.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrEntityNotFound) {
			NotFound(w, "Entity not found")
			return
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to delete entity")
		InternalError(w, "Failed to delete entity")
		return
	}

	JSON(w, http.StatusOK, map[string]any{"deleted": id})
}
