package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsync/reelsync/internal/config"
	"github.com/reelsync/reelsync/internal/database"
	"github.com/reelsync/reelsync/internal/schedule"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		WALMode:      true,
		ForeignKeys:  true,
		CacheSize:    -2000,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	db, err := database.Open(cfg)
	require.NoError(t, err, "opening test database")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func intPtr(v int) *int { return &v }

func sampleTask() *ScheduledTask {
	return &ScheduledTask{
		TargetID: "entity-1",
		Name:     "nightly import",
		Schedule: schedule.Spec{Kind: schedule.KindWeekly, Weekday: intPtr(1), Hour: 10},
		Action:   TaskAction{SeasonNumber: 2, CloudSync: true, ConflictMode: "skip"},
		Enabled:  true,
	}
}

func TestTasksCreateAndGet(t *testing.T) {
	ctx := context.Background()
	tasks := NewTasks(testDB(t))

	task := sampleTask()
	require.NoError(t, tasks.Create(ctx, task))
	require.NotEmpty(t, task.ID, "create assigns an id")

	got, err := tasks.Get(ctx, task.ID)
	require.NoError(t, err)

	assert.Equal(t, task.Name, got.Name)
	assert.Equal(t, task.TargetID, got.TargetID)
	assert.Equal(t, schedule.KindWeekly, got.Schedule.Kind)
	require.NotNil(t, got.Schedule.Weekday)
	assert.Equal(t, 1, *got.Schedule.Weekday)
	assert.Equal(t, 2, got.Action.SeasonNumber)
	assert.True(t, got.Action.CloudSync)
	assert.True(t, got.Enabled)
	assert.Nil(t, got.LastRun)
	assert.Nil(t, got.NextRun)
}

func TestTasksGetMissing(t *testing.T) {
	tasks := NewTasks(testDB(t))

	_, err := tasks.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTasksUpdate(t *testing.T) {
	ctx := context.Background()
	tasks := NewTasks(testDB(t))

	task := sampleTask()
	require.NoError(t, tasks.Create(ctx, task))

	task.Name = "renamed"
	task.Enabled = false
	next := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	task.NextRun = &next
	require.NoError(t, tasks.Update(ctx, task))

	got, err := tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.False(t, got.Enabled)
	require.NotNil(t, got.NextRun)
	assert.True(t, got.NextRun.Equal(next))

	missing := sampleTask()
	missing.ID = "ghost"
	assert.ErrorIs(t, tasks.Update(ctx, missing), ErrTaskNotFound)
}

func TestTasksUpdateRunResult(t *testing.T) {
	ctx := context.Background()
	tasks := NewTasks(testDB(t))

	task := sampleTask()
	require.NoError(t, tasks.Create(ctx, task))

	ran := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	next := ran.AddDate(0, 0, 7)
	require.NoError(t, tasks.UpdateRunResult(ctx, task.ID, StatusFailed, "network unreachable", ran, &next))

	got, err := tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.LastRunStatus)
	assert.Equal(t, "network unreachable", got.LastRunError)
	require.NotNil(t, got.LastRun)
	assert.True(t, got.LastRun.Equal(ran))
	require.NotNil(t, got.NextRun)
	assert.True(t, got.NextRun.Equal(next))
}

func TestTasksDelete(t *testing.T) {
	ctx := context.Background()
	tasks := NewTasks(testDB(t))

	task := sampleTask()
	require.NoError(t, tasks.Create(ctx, task))
	require.NoError(t, tasks.Delete(ctx, task.ID))

	_, err := tasks.Get(ctx, task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.ErrorIs(t, tasks.Delete(ctx, task.ID), ErrTaskNotFound)
}

func TestTasksListOrdered(t *testing.T) {
	ctx := context.Background()
	tasks := NewTasks(testDB(t))

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		task := sampleTask()
		task.Name = name
		task.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		task.UpdatedAt = task.CreatedAt
		require.NoError(t, tasks.Create(ctx, task))
	}

	all, err := tasks.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "first", all[0].Name)
	assert.Equal(t, "third", all[2].Name)
}

func TestTasksFindByTarget(t *testing.T) {
	ctx := context.Background()
	tasks := NewTasks(testDB(t))

	a := sampleTask()
	a.TargetID = "entity-a"
	b := sampleTask()
	b.TargetID = "entity-b"
	c := sampleTask()
	c.TargetID = "entity-a"
	for _, task := range []*ScheduledTask{a, b, c} {
		require.NoError(t, tasks.Create(ctx, task))
	}

	found, err := tasks.FindByTarget(ctx, "entity-a")
	require.NoError(t, err)
	assert.Len(t, found, 2)
	for _, task := range found {
		assert.Equal(t, "entity-a", task.TargetID)
	}
}
