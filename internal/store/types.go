// Package store persists scheduled tasks, tracked entities, and
// generic configuration values.
package store

import (
	"time"

	"github.com/reelsync/reelsync/internal/schedule"
)

// Run status values recorded on a task after each execution.
const (
	StatusSuccess     = "success"
	StatusFailed      = "failed"
	StatusInterrupted = "user_interrupted"
)

// ScheduledTask is a user-defined recurring import job.
type ScheduledTask struct {
	ID          string        `json:"id"`
	TargetID    string        `json:"target_id"`    // tracked entity this task imports into; may become dangling
	Name        string        `json:"name"`
	TargetTitle string        `json:"target_title"` // denormalized display cache
	Schedule    schedule.Spec `json:"schedule"`
	Action      TaskAction    `json:"action"`
	Enabled     bool          `json:"enabled"`

	LastRun       *time.Time `json:"last_run,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
	LastRunError  string     `json:"last_run_error,omitempty"`
	NextRun       *time.Time `json:"next_run,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskAction is the task-specific parameter bag passed through to the
// import collaborator. The scheduler treats it as opaque.
type TaskAction struct {
	SeasonNumber int    `json:"season_number,omitempty"`
	CloudSync    bool   `json:"cloud_sync,omitempty"`
	AutoConfirm  bool   `json:"auto_confirm,omitempty"`
	ConflictMode string `json:"conflict_mode,omitempty"` // skip, overwrite, ask
}

// Entity is a tracked media item, the target of import tasks and the
// candidate pool for reference resolution.
type Entity struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	MediaType   string    `json:"media_type"`
	Platform    string    `json:"platform"`
	CloudBacked bool      `json:"cloud_backed"`
	Seasons     []int     `json:"seasons"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasSeason reports whether the entity tracks the given season number.
func (e *Entity) HasSeason(season int) bool {
	for _, s := range e.Seasons {
		if s == season {
			return true
		}
	}
	return false
}
