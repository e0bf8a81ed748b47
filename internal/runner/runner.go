// Package runner orchestrates a single task execution: timeout
// enforcement, outcome classification, and nothing else. The import
// work itself belongs to the external collaborator.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/store"
)

// DefaultTimeout is the hard wall-clock limit for one execution.
const DefaultTimeout = 3 * time.Minute

// ErrTargetNotFound signals that the task's target entity no longer
// exists; callers are expected to offer reference resolution.
var ErrTargetNotFound = errors.New("target not found")

// ImportResult is what the import collaborator reports back.
type ImportResult struct {
	Success           bool   `json:"success"`
	Error             string `json:"error,omitempty"`
	SideEffectSummary string `json:"side_effect_summary,omitempty"`
}

// Importer is the external collaborator performing the actual
// metadata import. Implementations should honor ctx cancellation; the
// runner enforces the deadline either way.
type Importer interface {
	PerformImport(ctx context.Context, task *store.ScheduledTask, target *store.Entity) (*ImportResult, error)
}

// Outcome is the terminal result of one run.
type Outcome struct {
	Status      string // store.StatusSuccess or store.StatusFailed
	Error       string
	Summary     string
	NeedsRelink bool // failure was a dangling target reference
	Duration    time.Duration
}

// Runner executes one task at a time with a hard timeout.
type Runner struct {
	importer Importer
	timeout  time.Duration
}

// New creates a runner. A non-positive timeout falls back to DefaultTimeout.
func New(importer Importer, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		importer: importer,
		timeout:  timeout,
	}
}

// Timeout returns the configured hard limit.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Run performs one execution of the task against its resolved target.
// It never returns an error for execution failures; every failure mode
// is folded into the Outcome so the scheduling loop cannot be crashed
// by a single task.
func (r *Runner) Run(ctx context.Context, task *store.ScheduledTask, target *store.Entity) Outcome {
	started := time.Now()

	if target == nil {
		return Outcome{
			Status:      store.StatusFailed,
			Error:       fmt.Sprintf("target not found: %s", task.TargetID),
			NeedsRelink: true,
			Duration:    time.Since(started),
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type importReply struct {
		result *ImportResult
		err    error
	}

	// The collaborator call runs in its own goroutine so a misbehaving
	// implementation that ignores ctx still cannot hold the run past
	// the deadline.
	replyCh := make(chan importReply, 1)
	go func() {
		result, err := r.importer.PerformImport(runCtx, task, target)
		replyCh <- importReply{result: result, err: err}
	}()

	var reply importReply
	select {
	case reply = <-replyCh:
	case <-runCtx.Done():
		log.Warn().
			Str("task_id", task.ID).
			Dur("timeout", r.timeout).
			Msg("Task execution timed out")
		return Outcome{
			Status:   store.StatusFailed,
			Error:    fmt.Sprintf("timeout after %s", r.timeout),
			Duration: time.Since(started),
		}
	}

	if reply.err != nil {
		outcome := Outcome{
			Status:   store.StatusFailed,
			Error:    reply.err.Error(),
			Duration: time.Since(started),
		}
		if errors.Is(reply.err, ErrTargetNotFound) {
			outcome.NeedsRelink = true
		}
		return outcome
	}

	result := reply.result
	if result == nil || !result.Success {
		errMsg := "import reported failure"
		if result != nil && result.Error != "" {
			errMsg = result.Error
		}
		return Outcome{
			Status:   store.StatusFailed,
			Error:    errMsg,
			Duration: time.Since(started),
		}
	}

	return Outcome{
		Status:   store.StatusSuccess,
		Summary:  result.SideEffectSummary,
		Duration: time.Since(started),
	}
}
