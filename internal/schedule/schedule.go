// Package schedule computes trigger times for recurring import tasks.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind represents the type of recurrence rule.
type Kind string

const (
	// KindDaily fires every day at a fixed time.
	KindDaily Kind = "daily"
	// KindWeekly fires on one or two fixed weekdays at a fixed time.
	KindWeekly Kind = "weekly"
	// KindCron fires according to a standard cron expression.
	KindCron Kind = "cron"
)

// Weekday numbering is ISO: 0=Monday .. 6=Sunday. This is the single
// canonical convention across the codebase; convert at the boundary
// with ISOWeekday when working with time.Time values.

// Spec is a recurrence rule. Weekday and SecondWeekday are only
// meaningful for KindWeekly; Expression only for KindCron.
type Spec struct {
	Kind          Kind   `json:"kind"`
	Weekday       *int   `json:"weekday,omitempty"`
	SecondWeekday *int   `json:"second_weekday,omitempty"`
	Hour          int    `json:"hour"`
	Minute        int    `json:"minute"`
	Expression    string `json:"expression,omitempty"`
}

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks the spec for out-of-range or inconsistent fields.
// Malformed schedules fail closed: a task with an invalid spec cannot
// be armed.
func (s Spec) Validate() error {
	switch s.Kind {
	case KindDaily:
		if s.Weekday != nil || s.SecondWeekday != nil {
			return fmt.Errorf("daily schedule must not set weekdays")
		}
	case KindWeekly:
		if s.Weekday == nil {
			return fmt.Errorf("weekly schedule requires a weekday")
		}
		if *s.Weekday < 0 || *s.Weekday > 6 {
			return fmt.Errorf("weekday out of range: %d", *s.Weekday)
		}
		if s.SecondWeekday != nil {
			if *s.SecondWeekday < 0 || *s.SecondWeekday > 6 {
				return fmt.Errorf("second weekday out of range: %d", *s.SecondWeekday)
			}
			if *s.SecondWeekday == *s.Weekday {
				return fmt.Errorf("second weekday must differ from weekday")
			}
		}
	case KindCron:
		if s.Expression == "" {
			return fmt.Errorf("cron schedule requires an expression")
		}
		if _, err := cronParser.Parse(s.Expression); err != nil {
			return fmt.Errorf("parsing cron expression: %w", err)
		}
	default:
		return fmt.Errorf("unknown schedule kind: %q", s.Kind)
	}

	if s.Kind != KindCron {
		if s.Hour < 0 || s.Hour > 23 {
			return fmt.Errorf("hour out of range: %d", s.Hour)
		}
		if s.Minute < 0 || s.Minute > 59 {
			return fmt.Errorf("minute out of range: %d", s.Minute)
		}
	}

	return nil
}

// NextRun returns the next trigger instant strictly after now. It is a
// pure function of the spec and the supplied clock value.
func NextRun(s Spec, now time.Time) (time.Time, error) {
	if err := s.Validate(); err != nil {
		return time.Time{}, err
	}

	switch s.Kind {
	case KindDaily:
		return nextDaily(s, now), nil

	case KindWeekly:
		next := nextWeekly(s, *s.Weekday, now)
		if s.SecondWeekday != nil {
			if second := nextWeekly(s, *s.SecondWeekday, now); second.Before(next) {
				next = second
			}
		}
		return next, nil

	case KindCron:
		sched, err := cronParser.Parse(s.Expression)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing cron expression: %w", err)
		}
		return sched.Next(now), nil

	default:
		return time.Time{}, fmt.Errorf("unknown schedule kind: %q", s.Kind)
	}
}

// nextDaily returns today's hh:mm if still ahead, otherwise tomorrow's.
func nextDaily(s Spec, now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, s.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextWeekly returns the next occurrence of the given ISO weekday at hh:mm.
func nextWeekly(s Spec, weekday int, now time.Time) time.Time {
	daysAhead := (weekday - ISOWeekday(now) + 7) % 7
	next := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, s.Minute, 0, 0, now.Location())
	next = next.AddDate(0, 0, daysAhead)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// ISOWeekday converts t's weekday to ISO numbering (0=Monday .. 6=Sunday).
func ISOWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
