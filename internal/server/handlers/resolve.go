package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/resolver"
	"github.com/reelsync/reelsync/internal/scheduler"
	"github.com/reelsync/reelsync/internal/store"
)

// ResolveHandlers handles the dangling-reference maintenance endpoints.
type ResolveHandlers struct {
	tasks     *store.Tasks
	resolver  *resolver.Resolver
	scheduler *scheduler.Scheduler
}

// NewResolveHandlers creates new resolve handlers.
func NewResolveHandlers(tasks *store.Tasks, res *resolver.Resolver, sched *scheduler.Scheduler) *ResolveHandlers {
	return &ResolveHandlers{
		tasks:     tasks,
		resolver:  res,
		scheduler: sched,
	}
}

// Candidates handles GET /api/tasks/{id}/candidates. It returns the
// ranked replacement targets for a task whose entity has gone missing.
func (h *ResolveHandlers) Candidates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	task, err := h.tasks.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			NotFound(w, "Task not found")
			return
		}
		InternalError(w, "Failed to get task")
		return
	}

	candidates, err := h.resolver.Resolve(ctx, task)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to resolve candidates")
		InternalError(w, "Failed to resolve candidates")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"task_id":    id,
		"candidates": candidates,
		"count":      len(candidates),
	})
}

// RelinkRequest is the request body for the batch relink endpoint.
type RelinkRequest struct {
	DanglingID  string `json:"dangling_id"`
	NewTargetID string `json:"new_target_id"`
}

// Relink handles POST /api/tasks/relink. Every failed task pointing at
// the dangling target is repointed at the replacement.
func (h *ResolveHandlers) Relink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RelinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}
	if req.DanglingID == "" || req.NewTargetID == "" {
		BadRequest(w, "Both dangling_id and new_target_id are required")
		return
	}

	results, err := h.resolver.BatchRelink(ctx, req.DanglingID, req.NewTargetID)
	if err != nil {
		if errors.Is(err, store.ErrEntityNotFound) {
			NotFound(w, "Replacement target not found")
			return
		}
		log.Error().Err(err).Msg("Batch relink failed")
		InternalError(w, "Failed to relink tasks")
		return
	}

	// Relinked tasks get fresh timers against the new target.
	for _, result := range results {
		if !result.OK {
			continue
		}
		task, err := h.tasks.Get(ctx, result.TaskID)
		if err != nil {
			continue
		}
		if err := h.scheduler.Apply(ctx, task); err != nil {
			log.Warn().Err(err).Str("id", task.ID).Msg("Failed to re-arm relinked task")
		}
	}

	JSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

// CleanInvalid handles POST /api/tasks/clean-invalid. It reports tasks
// whose target no longer exists, each with ranked replacement
// candidates. Nothing is deleted; the decision stays with the operator.
func (h *ResolveHandlers) CleanInvalid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invalid, err := h.scheduler.CleanInvalidTasks(ctx, h.resolver)
	if err != nil {
		log.Error().Err(err).Msg("Invalid task scan failed")
		InternalError(w, "Failed to scan for invalid tasks")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"invalid": invalid,
		"count":   len(invalid),
	})
}
