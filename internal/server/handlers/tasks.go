package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gobwas/glob"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/schedule"
	"github.com/reelsync/reelsync/internal/scheduler"
	"github.com/reelsync/reelsync/internal/status"
	"github.com/reelsync/reelsync/internal/store"
)

// Display strings are rendered verbatim by the console; strip any
// markup on the way in.
var sanitizer = bluemonday.StrictPolicy()

// TaskHandlers handles task CRUD and lifecycle endpoints.
type TaskHandlers struct {
	tasks     *store.Tasks
	entities  *store.Entities
	scheduler *scheduler.Scheduler
	status    *status.Store
}

// NewTaskHandlers creates new task handlers.
func NewTaskHandlers(tasks *store.Tasks, entities *store.Entities, sched *scheduler.Scheduler, statusStore *status.Store) *TaskHandlers {
	return &TaskHandlers{
		tasks:     tasks,
		entities:  entities,
		scheduler: sched,
		status:    statusStore,
	}
}

// CreateTaskRequest is the request body for creating a task.
type CreateTaskRequest struct {
	Name     string           `json:"name"`
	TargetID string           `json:"target_id"`
	Schedule schedule.Spec    `json:"schedule"`
	Action   store.TaskAction `json:"action"`
	Enabled  bool             `json:"enabled"`
}

// UpdateTaskRequest is the request body for updating a task. Absent
// fields are left unchanged.
type UpdateTaskRequest struct {
	Name     *string           `json:"name,omitempty"`
	TargetID *string           `json:"target_id,omitempty"`
	Schedule *schedule.Spec    `json:"schedule,omitempty"`
	Action   *store.TaskAction `json:"action,omitempty"`
	Enabled  *bool             `json:"enabled,omitempty"`
}

// taskView is a task plus its live running flag.
type taskView struct {
	*store.ScheduledTask
	IsRunning bool `json:"is_running"`
}

// List handles GET /api/tasks. An optional name query filters by glob
// pattern.
func (h *TaskHandlers) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tasks, err := h.tasks.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list tasks")
		InternalError(w, "Failed to list tasks")
		return
	}

	if pattern := r.URL.Query().Get("name"); pattern != "" {
		matcher, err := glob.Compile(pattern)
		if err != nil {
			BadRequest(w, "Invalid name pattern: "+err.Error())
			return
		}
		filtered := tasks[:0]
		for _, task := range tasks {
			if matcher.Match(task.Name) {
				filtered = append(filtered, task)
			}
		}
		tasks = filtered
	}

	views := make([]taskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, taskView{
			ScheduledTask: task,
			IsRunning:     h.status.IsRunning(task.ID),
		})
	}

	JSON(w, http.StatusOK, map[string]any{
		"tasks": views,
		"count": len(views),
	})
}

// Get handles GET /api/tasks/{id}.
func (h *TaskHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	task, err := h.tasks.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			NotFound(w, "Task not found")
			return
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to get task")
		InternalError(w, "Failed to get task")
		return
	}

	JSON(w, http.StatusOK, taskView{
		ScheduledTask: task,
		IsRunning:     h.status.IsRunning(task.ID),
	})
}

// Create handles POST /api/tasks.
func (h *TaskHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	req.Name = strings.TrimSpace(sanitizer.Sanitize(req.Name))
	if req.Name == "" {
		BadRequest(w, "Name is required")
		return
	}
	if req.TargetID == "" {
		BadRequest(w, "Target ID is required")
		return
	}
	if err := req.Schedule.Validate(); err != nil {
		BadRequest(w, "Invalid schedule: "+err.Error())
		return
	}

	task := &store.ScheduledTask{
		TargetID: req.TargetID,
		Name:     req.Name,
		Schedule: req.Schedule,
		Action:   req.Action,
		Enabled:  req.Enabled,
	}

	// The display title cache is filled from the entity when it exists;
	// a task may be created ahead of its entity sync.
	if entity, err := h.entities.Get(ctx, req.TargetID); err == nil {
		task.TargetTitle = sanitizer.Sanitize(entity.Title)
	}

	if next, err := h.scheduler.NextRunFor(task); err == nil {
		task.NextRun = &next
	}

	if err := h.tasks.Create(ctx, task); err != nil {
		log.Error().Err(err).Msg("Failed to create task")
		InternalError(w, "Failed to create task")
		return
	}

	if err := h.scheduler.Apply(ctx, task); err != nil {
		log.Error().Err(err).Str("id", task.ID).Msg("Failed to arm new task")
		InternalError(w, "Task saved but could not be armed: "+err.Error())
		return
	}

	JSON(w, http.StatusCreated, task)
}

// Update handles PATCH /api/tasks/{id}.
func (h *TaskHandlers) Update(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(sanitizer.Sanitize(*req.Name))
		if name == "" {
			BadRequest(w, "Name must not be empty")
			return
		}
		task.Name = name
	}
	if req.TargetID != nil {
		task.TargetID = *req.TargetID
		if entity, err := h.entities.Get(ctx, task.TargetID); err == nil {
			task.TargetTitle = sanitizer.Sanitize(entity.Title)
		}
	}
	if req.Schedule != nil {
		if err := req.Schedule.Validate(); err != nil {
			BadRequest(w, "Invalid schedule: "+err.Error())
			return
		}
		task.Schedule = *req.Schedule
	}
	if req.Action != nil {
		task.Action = *req.Action
	}
	if req.Enabled != nil {
		task.Enabled = *req.Enabled
	}

	if next, err := h.scheduler.NextRunFor(task); err == nil {
		task.NextRun = &next
	}

	if err := h.tasks.Update(ctx, task); err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to update task")
		InternalError(w, "Failed to update task")
		return
	}

	if task.Enabled {
		if err := h.scheduler.Apply(ctx, task); err != nil {
			log.Error().Err(err).Str("id", id).Msg("Failed to re-arm task")
			InternalError(w, "Task saved but could not be armed: "+err.Error())
			return
		}
	} else {
		h.scheduler.Remove(ctx, task.ID)
	}

	JSON(w, http.StatusOK, task)
}

// Delete handles DELETE /api/tasks/{id}.
func (h *TaskHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	h.scheduler.Remove(ctx, id)

	if err := h.tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			NotFound(w, "Task not found")
			return
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to delete task")
		InternalError(w, "Failed to delete task")
		return
	}

	JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// Run handles POST /api/tasks/{id}/run, the manual "run now" action.
func (h *TaskHandlers) Run(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	err := h.scheduler.RunNow(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTaskNotFound):
			NotFound(w, "Task not found")
		case errors.Is(err, scheduler.ErrAlreadyRunning):
			Conflict(w, "Task is already running")
		default:
			log.Error().Err(err).Str("id", id).Msg("Manual run failed")
			InternalError(w, "Failed to run task")
		}
		return
	}

	taskStatus, err := h.status.Status(ctx, id)
	if err != nil {
		InternalError(w, "Run finished but status could not be read")
		return
	}

	JSON(w, http.StatusOK, taskStatus)
}
