package resolver

import (
	"testing"
	"time"

	"github.com/reelsync/reelsync/internal/store"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func danglingTask() *store.ScheduledTask {
	return &store.ScheduledTask{
		ID:          "task-1",
		TargetID:    "gone",
		Name:        "Breaking Waves scheduled task",
		TargetTitle: "Breaking Waves",
		CreatedAt:   baseTime,
	}
}

func entity(id, title string, createdAt time.Time) *store.Entity {
	return &store.Entity{ID: id, Title: title, CreatedAt: createdAt}
}

func TestRankExactTitleWins(t *testing.T) {
	task := danglingTask()
	// Entities created far outside the temporal window so only titles count.
	old := baseTime.AddDate(0, -6, 0)
	entities := []*store.Entity{
		entity("e-partial", "Breaking Waves: Special Edition", old),
		entity("e-exact", "Breaking Waves", old),
		entity("e-unrelated", "Cooking at Midnight", old),
	}

	candidates := Rank(task, entities)

	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	if candidates[0].Entity.ID != "e-exact" {
		t.Errorf("top candidate = %s, want e-exact", candidates[0].Entity.ID)
	}
	if candidates[0].Score != 100 {
		t.Errorf("exact match score = %d, want 100", candidates[0].Score)
	}
	if candidates[0].PrimaryReason != "exact title match" {
		t.Errorf("primary reason = %q", candidates[0].PrimaryReason)
	}
	if candidates[1].Entity.ID != "e-partial" {
		t.Errorf("second candidate = %s, want e-partial", candidates[1].Entity.ID)
	}
	if candidates[1].Score >= 100 {
		t.Errorf("partial match score = %d, should stay below exact", candidates[1].Score)
	}
}

func TestRankTaskLabelSuffixIgnored(t *testing.T) {
	task := danglingTask()
	task.TargetTitle = ""
	task.Name = "Breaking Waves scheduled task"

	candidates := Rank(task, []*store.Entity{
		entity("e-1", "Breaking Waves", baseTime.AddDate(0, -6, 0)),
	})

	if len(candidates) != 1 || candidates[0].Score != 100 {
		t.Fatalf("suffix-stripped name should match exactly, got %+v", candidates)
	}
}

func TestRankTemporalProximity(t *testing.T) {
	task := danglingTask()
	task.Name = "untitled"
	task.TargetTitle = "zzz"

	// Created two days apart: round(20 * (1 - 2/3)) = 7 points, below
	// the keep threshold on its own.
	near := entity("e-near", "different thing entirely", baseTime.Add(-48*time.Hour))

	candidates := Rank(task, []*store.Entity{near})
	if len(candidates) != 0 {
		t.Fatalf("temporal proximity alone (7 pts) should not pass threshold, got %+v", candidates)
	}
}

func TestRankThresholdDiscard(t *testing.T) {
	task := danglingTask()
	task.Action.CloudSync = true

	// Cloud flag match alone is exactly 30, which is "at or below" the
	// threshold and must be discarded.
	cloudOnly := &store.Entity{
		ID:          "e-cloud",
		Title:       "completely different",
		CloudBacked: true,
		CreatedAt:   baseTime.AddDate(0, -6, 0),
	}

	candidates := Rank(task, []*store.Entity{cloudOnly})
	if len(candidates) != 0 {
		t.Fatalf("score of exactly 30 must be discarded, got %+v", candidates)
	}
}

func TestRankCombinedSignals(t *testing.T) {
	task := danglingTask()
	task.Action.CloudSync = true
	task.Action.SeasonNumber = 3

	full := &store.Entity{
		ID:          "e-full",
		Title:       "Breaking Waves",
		CloudBacked: true,
		Seasons:     []int{1, 2, 3},
		CreatedAt:   baseTime, // same instant: full 20 temporal points
	}

	candidates := Rank(task, []*store.Entity{full})
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
	// 100 exact + 20 temporal + 30 cloud + 25 season.
	if candidates[0].Score != 175 {
		t.Errorf("score = %d, want 175", candidates[0].Score)
	}
	if len(candidates[0].AllReasons) != 4 {
		t.Errorf("reasons = %v, want 4 entries", candidates[0].AllReasons)
	}
}

func TestRankSkipsDanglingIDItself(t *testing.T) {
	task := danglingTask()

	candidates := Rank(task, []*store.Entity{
		entity("gone", "Breaking Waves", baseTime),
	})
	if len(candidates) != 0 {
		t.Fatalf("the dangling id must never be suggested, got %+v", candidates)
	}
}

func TestRankDeterministicTieBreak(t *testing.T) {
	task := danglingTask()
	old := baseTime.AddDate(0, -6, 0)
	entities := []*store.Entity{
		entity("e-b", "Breaking Waves", old),
		entity("e-a", "Breaking Waves", old),
		entity("e-c", "Breaking Waves", old),
	}

	for i := 0; i < 5; i++ {
		candidates := Rank(task, entities)
		if len(candidates) != 3 {
			t.Fatalf("got %d candidates, want 3", len(candidates))
		}
		for j, want := range []string{"e-a", "e-b", "e-c"} {
			if candidates[j].Entity.ID != want {
				t.Fatalf("run %d: position %d = %s, want %s (tie break by id)",
					i, j, candidates[j].Entity.ID, want)
			}
		}
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Breaking Waves Scheduled Task", "breaking waves"},
		{"Breaking Waves scheduled import", "breaking waves"},
		{"  Plain Title  ", "plain title"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeTitle(tt.in); got != tt.want {
			t.Errorf("normalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOverlapRatio(t *testing.T) {
	if got := overlapRatio("abc", "abcdef"); got != 0.5 {
		t.Errorf("ratio = %v, want 0.5", got)
	}
	if got := overlapRatio("", "abc"); got != 0 {
		t.Errorf("empty string ratio = %v, want 0", got)
	}
	// Rune counts, not bytes.
	if got := overlapRatio("日本", "日本語データ"); got != float64(2)/float64(6) {
		t.Errorf("rune ratio = %v", got)
	}
}
