// Package status tracks per-task execution state and notifies
// subscribers when it changes.
package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/store"
)

// TaskStatus is a point-in-time snapshot of one task's execution state,
// the shape the console renders per task.
type TaskStatus struct {
	TaskID        string     `json:"task_id"`
	Enabled       bool       `json:"enabled"`
	IsRunning     bool       `json:"is_running"`
	NextRun       *time.Time `json:"next_run,omitempty"`
	LastRun       *time.Time `json:"last_run,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
	LastRunError  string     `json:"last_run_error,omitempty"`
}

// Counts aggregates task state for the console dashboard.
type Counts struct {
	Total    int `json:"total"`
	Enabled  int `json:"enabled"`
	Disabled int `json:"disabled"`
	Running  int `json:"running"`
	Failed   int `json:"failed"`
}

// Handler receives status change notifications.
type Handler func(status TaskStatus)

type subscription struct {
	id      uint64
	handler Handler
}

// Wildcard subscribes a handler to changes of every task.
const Wildcard = "*"

// Store records execution state. Persistent fields go through the task
// store; the running flag lives in memory only, since it is meaningless
// across a restart. Subscription replaces the ad-hoc cross-component
// event wiring the console used to rely on.
type Store struct {
	tasks *store.Tasks

	mu          sync.RWMutex
	running     map[string]bool
	subscribers map[string][]subscription // task id or Wildcard
	nextSubID   uint64
}

// NewStore creates a status store backed by the task store.
func NewStore(tasks *store.Tasks) *Store {
	return &Store{
		tasks:       tasks,
		running:     make(map[string]bool),
		subscribers: make(map[string][]subscription),
	}
}

// Subscribe registers a handler for status changes of taskID, or of all
// tasks when taskID is Wildcard. Handlers run synchronously on the
// notifying goroutine and must not block. The returned function removes
// the subscription.
func (s *Store) Subscribe(taskID string, handler Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subscribers[taskID] = append(s.subscribers[taskID], subscription{id: id, handler: handler})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subscribers[taskID]
		for i, sub := range subs {
			if sub.id == id {
				s.subscribers[taskID] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(s.subscribers[taskID]) == 0 {
			delete(s.subscribers, taskID)
		}
	}
}

// IsRunning reports whether this context is currently executing taskID.
func (s *Store) IsRunning(taskID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running[taskID]
}

// MarkRunning flags a task as executing and notifies subscribers.
func (s *Store) MarkRunning(ctx context.Context, taskID string) {
	s.mu.Lock()
	s.running[taskID] = true
	s.mu.Unlock()

	s.notify(ctx, taskID)
}

// MarkFinished records a terminal run outcome, clears the running flag,
// and notifies subscribers. nextRun may be nil for disabled tasks.
func (s *Store) MarkFinished(ctx context.Context, taskID, runStatus, runErr string, lastRun time.Time, nextRun *time.Time) error {
	if err := s.tasks.UpdateRunResult(ctx, taskID, runStatus, runErr, lastRun, nextRun); err != nil {
		return fmt.Errorf("recording run result: %w", err)
	}

	s.mu.Lock()
	delete(s.running, taskID)
	s.mu.Unlock()

	s.notify(ctx, taskID)
	return nil
}

// ClearRunning drops the running flag without writing a run result.
// Used when an acquired lock turns out not to be runnable.
func (s *Store) ClearRunning(ctx context.Context, taskID string) {
	s.mu.Lock()
	delete(s.running, taskID)
	s.mu.Unlock()

	s.notify(ctx, taskID)
}

// Status returns the current snapshot for one task.
func (s *Store) Status(ctx context.Context, taskID string) (*TaskStatus, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	snapshot := s.snapshot(task)
	return &snapshot, nil
}

// Counts returns aggregate task counts for the dashboard.
func (s *Store) Counts(ctx context.Context) (*Counts, error) {
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := &Counts{Total: len(tasks)}
	for _, task := range tasks {
		if task.Enabled {
			counts.Enabled++
		} else {
			counts.Disabled++
		}
		if s.running[task.ID] {
			counts.Running++
		}
		if task.LastRunStatus == store.StatusFailed {
			counts.Failed++
		}
	}

	return counts, nil
}

func (s *Store) snapshot(task *store.ScheduledTask) TaskStatus {
	s.mu.RLock()
	running := s.running[task.ID]
	s.mu.RUnlock()

	return TaskStatus{
		TaskID:        task.ID,
		Enabled:       task.Enabled,
		IsRunning:     running,
		NextRun:       task.NextRun,
		LastRun:       task.LastRun,
		LastRunStatus: task.LastRunStatus,
		LastRunError:  task.LastRunError,
	}
}

func (s *Store) notify(ctx context.Context, taskID string) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		// The task may have been deleted between the state change and
		// the notification; nothing to report in that case.
		log.Debug().Str("task_id", taskID).Err(err).Msg("Skipping status notification")
		return
	}

	snapshot := s.snapshot(task)

	s.mu.RLock()
	subs := make([]subscription, 0, len(s.subscribers[taskID])+len(s.subscribers[Wildcard]))
	subs = append(subs, s.subscribers[taskID]...)
	subs = append(subs, s.subscribers[Wildcard]...)
	s.mu.RUnlock()

	for _, sub := range subs {
		sub.handler(snapshot)
	}
}
