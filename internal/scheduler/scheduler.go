// Package scheduler owns the set of enabled tasks and decides when
// each one runs. One timer is armed per task; firing goes through the
// lock manager so independent contexts sharing the store never execute
// the same task twice at once.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/locks"
	"github.com/reelsync/reelsync/internal/metrics"
	"github.com/reelsync/reelsync/internal/runner"
	"github.com/reelsync/reelsync/internal/schedule"
	"github.com/reelsync/reelsync/internal/status"
	"github.com/reelsync/reelsync/internal/store"
)

// ErrAlreadyRunning is returned by RunNow when the task's lock is held
// by another execution, here or in another context.
var ErrAlreadyRunning = errors.New("task is already running")

// Config holds scheduler timing settings.
type Config struct {
	// LockTTL is the lifetime requested for execution locks.
	LockTTL time.Duration

	// LockSweepInterval is how often expired locks are swept from
	// storage. Zero disables the periodic sweep; the startup sweep and
	// lazy cleanup still run.
	LockSweepInterval time.Duration
}

// Scheduler arms one timer per enabled task. It holds only a derived
// view of the persisted task set: Reconcile can always rebuild the
// armed-timer map from storage.
type Scheduler struct {
	tasks    *store.Tasks
	entities *store.Entities
	locks    *locks.Manager
	runner   *runner.Runner
	status   *status.Store

	lockTTL       time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a scheduler. Timers are not armed until Start.
func New(tasks *store.Tasks, entities *store.Entities, lockMgr *locks.Manager, run *runner.Runner, statusStore *status.Store, cfg *Config, opts ...Option) *Scheduler {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = locks.DefaultTTL
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		tasks:         tasks,
		entities:      entities,
		locks:         lockMgr,
		runner:        run,
		status:        statusStore,
		lockTTL:       cfg.LockTTL,
		sweepInterval: cfg.LockSweepInterval,
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
		timers:        make(map[string]*time.Timer),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start sweeps stale locks, reconciles timers from the persisted task
// set, and begins the periodic lock sweep.
func (s *Scheduler) Start(ctx context.Context) error {
	if removed, err := s.locks.SweepExpired(ctx); err != nil {
		log.Warn().Err(err).Msg("Startup lock sweep failed")
	} else if removed > 0 {
		log.Info().Int("removed", removed).Msg("Swept expired locks at startup")
	}

	if err := s.Reconcile(ctx); err != nil {
		return fmt.Errorf("reconciling tasks: %w", err)
	}

	if s.sweepInterval > 0 {
		s.wg.Add(1)
		go s.sweepLoop(s.ctx, s.sweepInterval)
	}

	log.Info().
		Dur("lock_ttl", s.lockTTL).
		Dur("execution_timeout", s.runner.Timeout()).
		Msg("Scheduler started")

	return nil
}

// Stop cancels all timers, waits for in-flight executions, and
// releases any locks this context still holds.
func (s *Scheduler) Stop() {
	s.cancel()

	s.mu.Lock()
	s.stopped = true
	for taskID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, taskID)
	}
	s.mu.Unlock()
	metrics.SetTasksArmed(0)

	s.wg.Wait()

	// Shutdown release is best effort; anything missed self-heals
	// through lock expiry.
	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.locks.ReleaseAll(releaseCtx)

	log.Info().Msg("Scheduler stopped")
}

// Reconcile rebuilds the armed-timer set from persisted tasks. Tasks
// whose stored next run has passed are re-pointed at the next future
// occurrence; missed occurrences are skipped, not caught up.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}

	armed := 0
	for _, task := range tasks {
		if !task.Enabled {
			continue
		}

		if err := s.arm(ctx, task); err != nil {
			log.Error().
				Err(err).
				Str("task_id", task.ID).
				Str("task_name", task.Name).
				Msg("Failed to arm task during reconcile")
			continue
		}
		armed++
	}

	log.Info().
		Int("total", len(tasks)).
		Int("armed", armed).
		Msg("Reconciled tasks from storage")

	return nil
}

// Apply reacts to a created or updated task: recompute its next run
// and re-arm or disarm its timer. The caller persists the task first.
func (s *Scheduler) Apply(ctx context.Context, task *store.ScheduledTask) error {
	if !task.Enabled {
		s.disarm(task.ID)
		if task.NextRun != nil {
			// NextRun stays visible in the console but no timer backs it.
			if err := s.tasks.UpdateNextRun(ctx, task.ID, task.NextRun); err != nil {
				return err
			}
		}
		return nil
	}

	return s.arm(ctx, task)
}

// Remove reacts to a deleted or disabled task: cancel its timer and
// release its lock if this context holds one. An in-flight execution
// is allowed to finish.
func (s *Scheduler) Remove(ctx context.Context, taskID string) {
	s.disarm(taskID)

	if released, err := s.locks.Release(ctx, taskID); err != nil {
		log.Warn().Str("task_id", taskID).Err(err).Msg("Failed to release lock on removal")
	} else if released {
		log.Debug().Str("task_id", taskID).Msg("Released lock on removal")
	}
}

// NextRunFor computes the next trigger for a task using the
// scheduler's clock.
func (s *Scheduler) NextRunFor(task *store.ScheduledTask) (time.Time, error) {
	return schedule.NextRun(task.Schedule, s.now())
}

// arm computes the next run, persists it, and (re)sets the timer.
func (s *Scheduler) arm(ctx context.Context, task *store.ScheduledTask) error {
	nextRun, err := schedule.NextRun(task.Schedule, s.now())
	if err != nil {
		// Fail closed: an invalid schedule never gets a timer.
		return fmt.Errorf("computing next run: %w", err)
	}

	if err := s.tasks.UpdateNextRun(ctx, task.ID, &nextRun); err != nil {
		return fmt.Errorf("persisting next run: %w", err)
	}

	taskID := task.ID
	delay := nextRun.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	if timer, ok := s.timers[taskID]; ok {
		timer.Stop()
	}
	s.timers[taskID] = time.AfterFunc(delay, func() {
		s.fire(taskID)
	})
	armed := len(s.timers)
	s.mu.Unlock()
	metrics.SetTasksArmed(armed)

	log.Debug().
		Str("task_id", taskID).
		Str("task_name", task.Name).
		Time("next_run", nextRun).
		Msg("Task armed")

	return nil
}

// disarm cancels the timer for taskID if one is armed.
func (s *Scheduler) disarm(taskID string) {
	s.mu.Lock()
	if timer, ok := s.timers[taskID]; ok {
		timer.Stop()
		delete(s.timers, taskID)
	}
	armed := len(s.timers)
	s.mu.Unlock()
	metrics.SetTasksArmed(armed)
}

// fire handles one timer expiry. Errors are logged, never propagated:
// one task failing must not stop other tasks' timers.
func (s *Scheduler) fire(taskID string) {
	// The waitgroup add must not race Stop's Wait, so it happens under
	// the same lock that Stop uses to mark shutdown.
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx := s.ctx

	// Always read fresh state; the task may have been edited or
	// disabled since the timer was armed.
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			s.disarm(taskID)
			return
		}
		log.Error().Str("task_id", taskID).Err(err).Msg("Failed to load task on fire")
		return
	}

	if !task.Enabled {
		s.disarm(taskID)
		return
	}

	result, err := s.locks.Acquire(ctx, taskID, locks.KindTaskExecution, s.lockTTL)
	if err != nil {
		log.Error().Str("task_id", taskID).Err(err).Msg("Lock acquisition failed")
		s.rearm(ctx, task)
		return
	}

	if !result.Granted {
		// Contention is backpressure, not an error: a task already
		// running is not queued again for this occurrence.
		log.Debug().
			Str("task_id", taskID).
			Str("reason", result.Reason).
			Msg("Skipping occurrence, lock denied")
		s.rearm(ctx, task)
		return
	}

	s.execute(ctx, task)
	s.rearm(ctx, task)
}

// execute runs the task under an already-held lock and records the
// outcome. The lock is always released, even on timeout or panic-free
// failure paths.
func (s *Scheduler) execute(ctx context.Context, task *store.ScheduledTask) {
	defer func() {
		if _, err := s.locks.Release(ctx, task.ID); err != nil {
			log.Warn().Str("task_id", task.ID).Err(err).Msg("Failed to release lock after run")
		}
	}()

	s.status.MarkRunning(ctx, task.ID)

	target, err := s.entities.Get(ctx, task.TargetID)
	if err != nil && !errors.Is(err, store.ErrEntityNotFound) {
		s.finish(ctx, task, runner.Outcome{
			Status: store.StatusFailed,
			Error:  fmt.Sprintf("loading target: %s", err),
		})
		return
	}

	outcome := s.runner.Run(ctx, task, target)

	if outcome.NeedsRelink {
		log.Warn().
			Str("task_id", task.ID).
			Str("target_id", task.TargetID).
			Msg("Task target is dangling; candidates available via resolver")
	}

	s.finish(ctx, task, outcome)
}

// finish writes the terminal status and the next occurrence.
func (s *Scheduler) finish(ctx context.Context, task *store.ScheduledTask, outcome runner.Outcome) {
	now := s.now().UTC()

	var nextRun *time.Time
	if task.Enabled {
		if next, err := schedule.NextRun(task.Schedule, s.now()); err == nil {
			nextRun = &next
		} else {
			log.Error().Str("task_id", task.ID).Err(err).Msg("Failed to compute next run")
		}
	}

	// The outcome is written even when shutdown cancelled the run's context.
	writeCtx := context.WithoutCancel(ctx)
	if err := s.status.MarkFinished(writeCtx, task.ID, outcome.Status, outcome.Error, now, nextRun); err != nil {
		log.Error().Str("task_id", task.ID).Err(err).Msg("Failed to record run outcome")
	}

	metrics.RecordTaskRun(outcome.Status, outcome.Duration)

	evt := log.Info()
	if outcome.Status != store.StatusSuccess {
		evt = log.Warn()
	}
	evt.
		Str("task_id", task.ID).
		Str("task_name", task.Name).
		Str("status", outcome.Status).
		Str("error", outcome.Error).
		Dur("duration", outcome.Duration).
		Msg("Task run finished")
}

// rearm schedules the next occurrence after a fire, unless the task
// was disabled or deleted meanwhile.
func (s *Scheduler) rearm(ctx context.Context, task *store.ScheduledTask) {
	if s.ctx.Err() != nil {
		return
	}

	fresh, err := s.tasks.Get(ctx, task.ID)
	if err != nil {
		s.disarm(task.ID)
		return
	}

	if !fresh.Enabled {
		s.disarm(task.ID)
		return
	}

	if err := s.arm(ctx, fresh); err != nil {
		log.Error().Str("task_id", task.ID).Err(err).Msg("Failed to re-arm task")
	}
}

// sweepLoop periodically removes expired locks from storage.
func (s *Scheduler) sweepLoop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed, err := s.locks.SweepExpired(ctx); err != nil {
				log.Error().Err(err).Msg("Periodic lock sweep failed")
			} else if removed > 0 {
				log.Info().Int("removed", removed).Msg("Swept expired locks")
			}
		}
	}
}
