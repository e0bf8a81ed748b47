// Package resolver recovers tasks whose target reference has gone
// dangling by ranking replacement candidates with a weighted
// similarity score. It is advisory only: it never re-links a task by
// itself.
package resolver

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/store"
)

// Scoring weights and limits.
const (
	exactTitleScore  = 100
	partialTitleMax  = 80
	temporalMax      = 20
	cloudSyncScore   = 30
	seasonMatchScore = 25

	// Candidates at or below this total are discarded.
	scoreThreshold = 30

	// Creation times further apart than this contribute nothing.
	temporalWindow = 72 * time.Hour
)

// Task titles carry a conventional suffix in the console; it is
// stripped before comparison so the label never skews matching.
var titleSuffixes = []string{"scheduled task", "scheduled import"}

// MatchCandidate is one scored replacement suggestion.
type MatchCandidate struct {
	Entity        *store.Entity `json:"entity"`
	Score         int           `json:"score"`
	PrimaryReason string        `json:"primary_reason"`
	AllReasons    []string      `json:"all_reasons"`
}

// RelinkResult reports the outcome for one task in a batch re-link.
type RelinkResult struct {
	TaskID string `json:"task_id"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// Resolver scans the entity pool for candidates.
type Resolver struct {
	tasks    *store.Tasks
	entities *store.Entities
}

// New creates a resolver over the given stores.
func New(tasks *store.Tasks, entities *store.Entities) *Resolver {
	return &Resolver{
		tasks:    tasks,
		entities: entities,
	}
}

// Resolve computes the ranked candidate list for a task with a
// dangling target. Output is deterministic for the same input set:
// descending score, ties broken by entity id. An empty list is a
// valid outcome, not an error.
func (r *Resolver) Resolve(ctx context.Context, task *store.ScheduledTask) ([]MatchCandidate, error) {
	entities, err := r.entities.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}

	candidates := Rank(task, entities)

	log.Debug().
		Str("task_id", task.ID).
		Str("dangling_target", task.TargetID).
		Int("candidates", len(candidates)).
		Msg("Resolved replacement candidates")

	return candidates, nil
}

// Rank scores every entity against the task and returns the kept,
// ordered candidates. Pure function; exposed for direct testing.
func Rank(task *store.ScheduledTask, entities []*store.Entity) []MatchCandidate {
	candidates := make([]MatchCandidate, 0, len(entities))

	for _, entity := range entities {
		if entity.ID == task.TargetID {
			// The dangling id itself cannot come back as a suggestion.
			continue
		}

		score, reasons := scoreEntity(task, entity)
		if score <= scoreThreshold {
			continue
		}

		candidates = append(candidates, MatchCandidate{
			Entity:        entity,
			Score:         score,
			PrimaryReason: reasons[0],
			AllReasons:    reasons,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Entity.ID < candidates[j].Entity.ID
	})

	return candidates
}

// scoreEntity computes the weighted similarity score and its
// contributing reasons, strongest factor first.
func scoreEntity(task *store.ScheduledTask, entity *store.Entity) (int, []string) {
	var score int
	var reasons []string

	taskTitle := normalizeTitle(task.Name)
	if t := normalizeTitle(task.TargetTitle); t != "" {
		taskTitle = t
	}
	entityTitle := normalizeTitle(entity.Title)

	if taskTitle != "" && taskTitle == entityTitle {
		score += exactTitleScore
		reasons = append(reasons, "exact title match")
	} else if taskTitle != "" && entityTitle != "" &&
		(strings.Contains(taskTitle, entityTitle) || strings.Contains(entityTitle, taskTitle)) {
		ratio := overlapRatio(taskTitle, entityTitle)
		partial := int(math.Round(partialTitleMax * ratio))
		score += partial
		reasons = append(reasons, fmt.Sprintf("partial title match (%d%% overlap)", int(math.Round(ratio*100))))
	}

	if diff := task.CreatedAt.Sub(entity.CreatedAt).Abs(); diff < temporalWindow {
		days := diff.Hours() / 24
		proximity := int(math.Round(temporalMax * (1 - days/3)))
		if proximity > 0 {
			score += proximity
			reasons = append(reasons, fmt.Sprintf("created within %.1f days", days))
		}
	}

	if task.Action.CloudSync && entity.CloudBacked {
		score += cloudSyncScore
		reasons = append(reasons, "cloud sync flag matches")
	}

	if task.Action.SeasonNumber > 0 && entity.HasSeason(task.Action.SeasonNumber) {
		score += seasonMatchScore
		reasons = append(reasons, fmt.Sprintf("has season %d", task.Action.SeasonNumber))
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "no similarity")
	}

	return score, reasons
}

// normalizeTitle lowercases, trims, and strips the conventional task
// label suffix.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(strings.TrimSpace(title))
	for _, suffix := range titleSuffixes {
		normalized = strings.TrimSpace(strings.TrimSuffix(normalized, suffix))
	}
	return normalized
}

// overlapRatio is min(len_a, len_b) / max(len_a, len_b) on rune counts.
func overlapRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}
	if la > lb {
		la, lb = lb, la
	}
	return float64(la) / float64(lb)
}

// BatchRelink re-points every task whose target is the given dangling
// id and whose last run failed, to the chosen entity. Results are
// reported per task; one failure does not abort the batch.
func (r *Resolver) BatchRelink(ctx context.Context, danglingID, newTargetID string) ([]RelinkResult, error) {
	target, err := r.entities.Get(ctx, newTargetID)
	if err != nil {
		return nil, fmt.Errorf("loading chosen target: %w", err)
	}

	tasks, err := r.tasks.FindByTarget(ctx, danglingID)
	if err != nil {
		return nil, fmt.Errorf("finding tasks by target: %w", err)
	}

	var results []RelinkResult
	for _, task := range tasks {
		if task.LastRunStatus != store.StatusFailed {
			continue
		}

		task.TargetID = target.ID
		task.TargetTitle = target.Title
		task.LastRunError = ""

		result := RelinkResult{TaskID: task.ID, OK: true}
		if err := r.tasks.Update(ctx, task); err != nil {
			result.OK = false
			result.Error = err.Error()
			log.Warn().Str("task_id", task.ID).Err(err).Msg("Failed to re-link task")
		} else {
			log.Info().
				Str("task_id", task.ID).
				Str("old_target", danglingID).
				Str("new_target", target.ID).
				Msg("Re-linked task")
		}
		results = append(results, result)
	}

	return results, nil
}
