package schedule

import (
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

// Monday 2026-03-02 09:00 UTC.
var baseMonday = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestISOWeekday(t *testing.T) {
	if got := ISOWeekday(baseMonday); got != 0 {
		t.Errorf("Monday = %d, want 0", got)
	}
	sunday := baseMonday.AddDate(0, 0, 6)
	if got := ISOWeekday(sunday); got != 6 {
		t.Errorf("Sunday = %d, want 6", got)
	}
}

func TestNextRunDaily(t *testing.T) {
	spec := Spec{Kind: KindDaily, Hour: 10, Minute: 30}

	next, err := NextRun(spec, baseMonday)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}
	want := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}

	// Past today's trigger time, the run moves to tomorrow.
	later := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	next, err = NextRun(spec, later)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}
	want = time.Date(2026, 3, 3, 10, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextRunDailyExactlyNowRollsOver(t *testing.T) {
	spec := Spec{Kind: KindDaily, Hour: 9, Minute: 0}

	next, err := NextRun(spec, baseMonday)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}
	// Strictly after now: the 09:00 trigger at exactly 09:00 is tomorrow's.
	want := baseMonday.AddDate(0, 0, 1)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextRunWeekly(t *testing.T) {
	// Tuesday 10:00, evaluated on Monday 09:00.
	spec := Spec{Kind: KindWeekly, Weekday: intPtr(1), Hour: 10, Minute: 0}

	next, err := NextRun(spec, baseMonday)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}
	want := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextRunWeeklySameDayPastTime(t *testing.T) {
	// Monday 08:00, evaluated on Monday 09:00: a full week ahead.
	spec := Spec{Kind: KindWeekly, Weekday: intPtr(0), Hour: 8, Minute: 0}

	next, err := NextRun(spec, baseMonday)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}
	want := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextRunWeeklySecondWeekdayPicksEarlier(t *testing.T) {
	// Friday primary, Wednesday second: from Monday the Wednesday run
	// comes first.
	spec := Spec{
		Kind:          KindWeekly,
		Weekday:       intPtr(4),
		SecondWeekday: intPtr(2),
		Hour:          10,
		Minute:        0,
	}

	next, err := NextRun(spec, baseMonday)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}
	want := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextRunCron(t *testing.T) {
	spec := Spec{Kind: KindCron, Expression: "30 4 * * *"}

	next, err := NextRun(spec, baseMonday)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}
	want := time.Date(2026, 3, 3, 4, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextRunAlwaysStrictlyAfter(t *testing.T) {
	specs := []Spec{
		{Kind: KindDaily, Hour: 9, Minute: 0},
		{Kind: KindWeekly, Weekday: intPtr(0), Hour: 9, Minute: 0},
		{Kind: KindCron, Expression: "0 9 * * 1"},
	}

	now := baseMonday
	for _, spec := range specs {
		next, err := NextRun(spec, now)
		if err != nil {
			t.Fatalf("NextRun(%v) failed: %v", spec.Kind, err)
		}
		if !next.After(now) {
			t.Errorf("kind %v: next %v not strictly after now %v", spec.Kind, next, now)
		}
	}
}

func TestNextRunDeterministic(t *testing.T) {
	spec := Spec{Kind: KindWeekly, Weekday: intPtr(3), Hour: 12, Minute: 15}

	first, err := NextRun(spec, baseMonday)
	if err != nil {
		t.Fatalf("NextRun failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := NextRun(spec, baseMonday)
		if err != nil {
			t.Fatalf("NextRun failed: %v", err)
		}
		if !again.Equal(first) {
			t.Fatalf("non-deterministic result: %v vs %v", again, first)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"valid daily", Spec{Kind: KindDaily, Hour: 0, Minute: 0}, false},
		{"valid weekly", Spec{Kind: KindWeekly, Weekday: intPtr(6), Hour: 23, Minute: 59}, false},
		{"valid cron", Spec{Kind: KindCron, Expression: "*/5 * * * *"}, false},
		{"unknown kind", Spec{Kind: "hourly"}, true},
		{"daily with weekday", Spec{Kind: KindDaily, Weekday: intPtr(1)}, true},
		{"weekly without weekday", Spec{Kind: KindWeekly, Hour: 9}, true},
		{"weekday too large", Spec{Kind: KindWeekly, Weekday: intPtr(7), Hour: 9}, true},
		{"weekday negative", Spec{Kind: KindWeekly, Weekday: intPtr(-1), Hour: 9}, true},
		{"duplicate second weekday", Spec{Kind: KindWeekly, Weekday: intPtr(2), SecondWeekday: intPtr(2), Hour: 9}, true},
		{"hour out of range", Spec{Kind: KindDaily, Hour: 24}, true},
		{"minute out of range", Spec{Kind: KindDaily, Hour: 9, Minute: 60}, true},
		{"cron without expression", Spec{Kind: KindCron}, true},
		{"cron bad expression", Spec{Kind: KindCron, Expression: "not a cron line"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNextRunInvalidSpecFails(t *testing.T) {
	if _, err := NextRun(Spec{Kind: "bogus"}, baseMonday); err == nil {
		t.Error("expected error for invalid spec")
	}
}
