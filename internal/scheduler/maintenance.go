package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/locks"
	"github.com/reelsync/reelsync/internal/resolver"
	"github.com/reelsync/reelsync/internal/store"
)

// RunNow executes a task immediately through the normal acquire → run
// → release path, bypassing timer arming. Lock denial surfaces as
// ErrAlreadyRunning for the console to show.
func (s *Scheduler) RunNow(ctx context.Context, taskID string) error {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}

	result, err := s.locks.Acquire(ctx, taskID, locks.KindTaskExecution, s.lockTTL)
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}

	if !result.Granted {
		log.Info().
			Str("task_id", taskID).
			Str("reason", result.Reason).
			Msg("Manual run refused, lock held")
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, result.Reason)
	}

	s.execute(ctx, task)

	// Manual runs re-point the timer too, so the next scheduled
	// occurrence reflects the stored schedule rather than drifting.
	if task.Enabled {
		s.rearm(ctx, task)
	}

	return nil
}

// InvalidTask describes one task whose target reference is dangling,
// along with ranked replacement candidates.
type InvalidTask struct {
	Task       *store.ScheduledTask      `json:"task"`
	Candidates []resolver.MatchCandidate `json:"candidates"`
}

// CleanInvalidTasks scans all tasks for dangling target references and
// pairs each with resolver candidates. Nothing is deleted; re-linking
// is a manual or batch decision made in the console.
func (s *Scheduler) CleanInvalidTasks(ctx context.Context, res *resolver.Resolver) ([]InvalidTask, error) {
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	var invalid []InvalidTask
	for _, task := range tasks {
		_, err := s.entities.Get(ctx, task.TargetID)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrEntityNotFound) {
			return nil, fmt.Errorf("checking target %s: %w", task.TargetID, err)
		}

		candidates, err := res.Resolve(ctx, task)
		if err != nil {
			return nil, fmt.Errorf("resolving candidates for %s: %w", task.ID, err)
		}

		log.Info().
			Str("task_id", task.ID).
			Str("dangling_target", task.TargetID).
			Int("candidates", len(candidates)).
			Msg("Found task with dangling target")

		invalid = append(invalid, InvalidTask{
			Task:       task,
			Candidates: candidates,
		})
	}

	return invalid, nil
}
