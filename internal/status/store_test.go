package status

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/reelsync/reelsync/internal/config"
	"github.com/reelsync/reelsync/internal/database"
	"github.com/reelsync/reelsync/internal/schedule"
	"github.com/reelsync/reelsync/internal/store"
)

func testTasks(t *testing.T) *store.Tasks {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		WALMode:      true,
		ForeignKeys:  true,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return store.NewTasks(db)
}

func createTask(t *testing.T, tasks *store.Tasks, enabled bool) *store.ScheduledTask {
	t.Helper()

	task := &store.ScheduledTask{
		TargetID: "entity-1",
		Name:     "import",
		Schedule: schedule.Spec{Kind: schedule.KindDaily, Hour: 10},
		Enabled:  enabled,
	}
	if err := tasks.Create(context.Background(), task); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	return task
}

func TestRunningFlagLifecycle(t *testing.T) {
	ctx := context.Background()
	tasks := testTasks(t)
	s := NewStore(tasks)
	task := createTask(t, tasks, true)

	if s.IsRunning(task.ID) {
		t.Error("fresh task reported running")
	}

	s.MarkRunning(ctx, task.ID)
	if !s.IsRunning(task.ID) {
		t.Error("task not reported running after MarkRunning")
	}

	ran := time.Now().UTC()
	if err := s.MarkFinished(ctx, task.ID, store.StatusSuccess, "", ran, nil); err != nil {
		t.Fatalf("MarkFinished failed: %v", err)
	}
	if s.IsRunning(task.ID) {
		t.Error("task still reported running after MarkFinished")
	}

	got, err := s.Status(ctx, task.ID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if got.LastRunStatus != store.StatusSuccess {
		t.Errorf("last run status = %q, want success", got.LastRunStatus)
	}
	if got.LastRun == nil || !got.LastRun.Equal(ran.Truncate(time.Second)) {
		t.Errorf("last run = %v, want %v", got.LastRun, ran)
	}
}

func TestMarkFinishedPersistsFailure(t *testing.T) {
	ctx := context.Background()
	tasks := testTasks(t)
	s := NewStore(tasks)
	task := createTask(t, tasks, true)

	ran := time.Now().UTC()
	next := ran.Add(24 * time.Hour)
	if err := s.MarkFinished(ctx, task.ID, store.StatusFailed, "timeout after 3m0s", ran, &next); err != nil {
		t.Fatalf("MarkFinished failed: %v", err)
	}

	// The failure survives a fresh read from storage.
	got, err := tasks.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.LastRunStatus != store.StatusFailed {
		t.Errorf("persisted status = %q, want failed", got.LastRunStatus)
	}
	if got.LastRunError != "timeout after 3m0s" {
		t.Errorf("persisted error = %q", got.LastRunError)
	}
	if got.NextRun == nil {
		t.Error("next run not persisted")
	}
}

func TestSubscribeSpecificAndWildcard(t *testing.T) {
	ctx := context.Background()
	tasks := testTasks(t)
	s := NewStore(tasks)
	taskA := createTask(t, tasks, true)
	taskB := createTask(t, tasks, true)

	var specific, wildcard []TaskStatus
	s.Subscribe(taskA.ID, func(status TaskStatus) {
		specific = append(specific, status)
	})
	s.Subscribe(Wildcard, func(status TaskStatus) {
		wildcard = append(wildcard, status)
	})

	s.MarkRunning(ctx, taskA.ID)
	s.MarkRunning(ctx, taskB.ID)

	if len(specific) != 1 || specific[0].TaskID != taskA.ID {
		t.Errorf("specific subscriber got %+v, want one update for task A", specific)
	}
	if len(wildcard) != 2 {
		t.Errorf("wildcard subscriber got %d updates, want 2", len(wildcard))
	}
	if len(specific) > 0 && !specific[0].IsRunning {
		t.Error("running snapshot not flagged as running")
	}
}

func TestUnsubscribe(t *testing.T) {
	ctx := context.Background()
	tasks := testTasks(t)
	s := NewStore(tasks)
	task := createTask(t, tasks, true)

	var updates int
	unsubscribe := s.Subscribe(Wildcard, func(TaskStatus) {
		updates++
	})

	s.MarkRunning(ctx, task.ID)
	unsubscribe()
	s.ClearRunning(ctx, task.ID)

	if updates != 1 {
		t.Errorf("got %d updates after unsubscribe, want 1", updates)
	}
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	tasks := testTasks(t)
	s := NewStore(tasks)

	enabled := createTask(t, tasks, true)
	createTask(t, tasks, true)
	createTask(t, tasks, false)

	failed := createTask(t, tasks, true)
	if err := s.MarkFinished(ctx, failed.ID, store.StatusFailed, "boom", time.Now().UTC(), nil); err != nil {
		t.Fatalf("MarkFinished failed: %v", err)
	}

	s.MarkRunning(ctx, enabled.ID)

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts.Total != 4 {
		t.Errorf("total = %d, want 4", counts.Total)
	}
	if counts.Enabled != 3 {
		t.Errorf("enabled = %d, want 3", counts.Enabled)
	}
	if counts.Disabled != 1 {
		t.Errorf("disabled = %d, want 1", counts.Disabled)
	}
	if counts.Running != 1 {
		t.Errorf("running = %d, want 1", counts.Running)
	}
	if counts.Failed != 1 {
		t.Errorf("failed = %d, want 1", counts.Failed)
	}
}

func TestStatusMissingTask(t *testing.T) {
	s := NewStore(testTasks(t))

	if _, err := s.Status(context.Background(), "ghost"); err == nil {
		t.Error("expected error for unknown task")
	}
}
