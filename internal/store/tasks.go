package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reelsync/reelsync/internal/database"
)

// ErrTaskNotFound is returned when a task id does not exist.
var ErrTaskNotFound = errors.New("task not found")

// Tasks handles database operations for scheduled tasks.
type Tasks struct {
	db *database.DB
}

// NewTasks creates a new task store.
func NewTasks(db *database.DB) *Tasks {
	return &Tasks{db: db}
}

// Create inserts a new task.
func (s *Tasks) Create(ctx context.Context, task *ScheduledTask) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = now
	}

	scheduleJSON, err := json.Marshal(task.Schedule)
	if err != nil {
		return fmt.Errorf("marshaling schedule: %w", err)
	}
	actionJSON, err := json.Marshal(task.Action)
	if err != nil {
		return fmt.Errorf("marshaling action: %w", err)
	}

	query := `
		INSERT INTO tasks (id, target_id, name, target_title, schedule, action, enabled, last_run, last_run_status, last_run_error, next_run, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		task.ID,
		task.TargetID,
		task.Name,
		task.TargetTitle,
		string(scheduleJSON),
		string(actionJSON),
		boolToInt(task.Enabled),
		nullTime(task.LastRun),
		task.LastRunStatus,
		task.LastRunError,
		nullTime(task.NextRun),
		task.CreatedAt.Format(time.RFC3339),
		task.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}

	return nil
}

// Update replaces all mutable fields of a task.
func (s *Tasks) Update(ctx context.Context, task *ScheduledTask) error {
	task.UpdatedAt = time.Now().UTC()

	scheduleJSON, err := json.Marshal(task.Schedule)
	if err != nil {
		return fmt.Errorf("marshaling schedule: %w", err)
	}
	actionJSON, err := json.Marshal(task.Action)
	if err != nil {
		return fmt.Errorf("marshaling action: %w", err)
	}

	query := `
		UPDATE tasks
		SET target_id = ?, name = ?, target_title = ?, schedule = ?, action = ?, enabled = ?, last_run = ?, last_run_status = ?, last_run_error = ?, next_run = ?, updated_at = ?
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		task.TargetID,
		task.Name,
		task.TargetTitle,
		string(scheduleJSON),
		string(actionJSON),
		boolToInt(task.Enabled),
		nullTime(task.LastRun),
		task.LastRunStatus,
		task.LastRunError,
		nullTime(task.NextRun),
		task.UpdatedAt.Format(time.RFC3339),
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTaskNotFound
	}

	return nil
}

// UpdateRunResult records the outcome of an execution.
func (s *Tasks) UpdateRunResult(ctx context.Context, taskID, status, runErr string, lastRun time.Time, nextRun *time.Time) error {
	query := `
		UPDATE tasks
		SET last_run = ?, last_run_status = ?, last_run_error = ?, next_run = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := s.db.ExecContext(ctx, query,
		lastRun.UTC().Format(time.RFC3339),
		status,
		runErr,
		nullTime(nextRun),
		database.Now(),
		taskID,
	)
	if err != nil {
		return fmt.Errorf("updating run result: %w", err)
	}

	return nil
}

// UpdateNextRun updates only the next trigger time.
func (s *Tasks) UpdateNextRun(ctx context.Context, taskID string, nextRun *time.Time) error {
	query := `UPDATE tasks SET next_run = ?, updated_at = ? WHERE id = ?`

	_, err := s.db.ExecContext(ctx, query, nullTime(nextRun), database.Now(), taskID)
	if err != nil {
		return fmt.Errorf("updating next_run: %w", err)
	}

	return nil
}

// Delete removes a task. Returns ErrTaskNotFound if it does not exist.
func (s *Tasks) Delete(ctx context.Context, taskID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTaskNotFound
	}

	return nil
}

// Get retrieves a task by id.
func (s *Tasks) Get(ctx context.Context, taskID string) (*ScheduledTask, error) {
	row := s.db.QueryRowContext(ctx, taskSelect+` WHERE id = ?`, taskID)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("getting task: %w", err)
	}

	return task, nil
}

// List retrieves all tasks ordered by creation time.
func (s *Tasks) List(ctx context.Context) ([]*ScheduledTask, error) {
	rows, err := s.db.QueryContext(ctx, taskSelect+` ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// FindByTarget retrieves all tasks pointing at the given entity.
func (s *Tasks) FindByTarget(ctx context.Context, targetID string) ([]*ScheduledTask, error) {
	rows, err := s.db.QueryContext(ctx, taskSelect+` WHERE target_id = ? ORDER BY created_at ASC, id ASC`, targetID)
	if err != nil {
		return nil, fmt.Errorf("querying tasks by target: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

const taskSelect = `
	SELECT id, target_id, name, target_title, schedule, action, enabled, last_run, last_run_status, last_run_error, next_run, created_at, updated_at
	FROM tasks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*ScheduledTask, error) {
	var task ScheduledTask
	var scheduleJSON, actionJSON string
	var enabled int
	var lastRun, nextRun sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&task.ID,
		&task.TargetID,
		&task.Name,
		&task.TargetTitle,
		&scheduleJSON,
		&actionJSON,
		&enabled,
		&lastRun,
		&task.LastRunStatus,
		&task.LastRunError,
		&nextRun,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(scheduleJSON), &task.Schedule); err != nil {
		return nil, fmt.Errorf("unmarshaling schedule: %w", err)
	}
	if err := json.Unmarshal([]byte(actionJSON), &task.Action); err != nil {
		return nil, fmt.Errorf("unmarshaling action: %w", err)
	}

	task.Enabled = enabled == 1

	var parseErr error
	if task.LastRun, parseErr = parseNullTime(lastRun); parseErr != nil {
		return nil, fmt.Errorf("parsing last_run: %w", parseErr)
	}
	if task.NextRun, parseErr = parseNullTime(nextRun); parseErr != nil {
		return nil, fmt.Errorf("parsing next_run: %w", parseErr)
	}
	if task.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt); parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	if task.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt); parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &task, nil
}

func scanTasks(rows *sql.Rows) ([]*ScheduledTask, error) {
	var tasks []*ScheduledTask

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task rows: %w", err)
	}

	return tasks, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
