// Package recurrence decides whether a chore definition is due on a given
// calendar date. All evaluation is in UTC and free of side effects.
package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
)

// RunsOn reports whether the chore should run on the given day.
// Rules, in order: non-recurring chores always run; daily chores always
// run; weekly chores run when the stored weekday name matches the day's
// weekday (case-insensitive); monthly chores run when the stored
// comma-separated day-of-month list contains the day's day-of-month.
// Any other cadence does not run.
func RunsOn(chore model.Chore, day time.Time) bool {
	if !chore.IsRecurring {
		return true
	}
	switch chore.Recurrence {
	case model.RecurrenceDaily:
		return true
	case model.RecurrenceWeekly:
		want := strings.ToLower(strings.TrimSpace(chore.DayOfWeek))
		return want == strings.ToLower(day.UTC().Weekday().String())
	case model.RecurrenceMonthly:
		return containsDay(chore.DayOfMonth, day.UTC().Day())
	}
	return false
}

func containsDay(list string, day int) bool {
	want := strconv.Itoa(day)
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == want {
			return true
		}
	}
	return false
}

// DueTodayClause returns a SQL predicate equivalent to RunsOn for the given
// day, so stores can filter chore rows without loading them all. The
// monthly branch normalizes the stored list by stripping spaces and
// wrapping it in commas, then substring-matches ",<day>,".
func DueTodayClause(day time.Time) (string, []any) {
	day = day.UTC()
	clause := `(is_recurring = 0
		OR recurrence = 'daily'
		OR (recurrence = 'weekly' AND LOWER(TRIM(day_of_week)) = ?)
		OR (recurrence = 'monthly' AND (',' || REPLACE(day_of_month, ' ', '') || ',') LIKE ?))`
	args := []any{
		strings.ToLower(day.Weekday().String()),
		fmt.Sprintf("%%,%d,%%", day.Day()),
	}
	return clause, args
}

// DueDate combines the given day with a chore's time-of-day marker in UTC.
// When timeDue is nil or malformed the assignment is due at the very end of
// the day (23:59:59.999999).
func DueDate(timeDue *string, day time.Time) time.Time {
	day = day.UTC()
	if timeDue != nil {
		if t, err := parseTimeOfDay(*timeDue); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
		}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 999999000, time.UTC)
}

func parseTimeOfDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("15:04:05", s); err == nil {
		return t, nil
	}
	return time.Parse("15:04", s)
}

// ValidateMarkers checks the recurrence configuration of a chore at data
// entry time: cadence consistency, weekday/day-of-month exclusivity, and
// day-of-month values in 1-31.
func ValidateMarkers(isRecurring bool, cadence, dayOfWeek, dayOfMonth string) error {
	if isRecurring && cadence == "" {
		return fmt.Errorf("recurring chore requires a cadence")
	}
	switch cadence {
	case "", model.RecurrenceDaily:
	case model.RecurrenceWeekly:
		if strings.TrimSpace(dayOfWeek) == "" {
			return fmt.Errorf("weekly cadence requires a day of week")
		}
		if dayOfMonth != "" {
			return fmt.Errorf("weekly cadence forbids a day of month")
		}
		if !validWeekday(dayOfWeek) {
			return fmt.Errorf("unknown weekday: %q", dayOfWeek)
		}
	case model.RecurrenceMonthly:
		if strings.TrimSpace(dayOfMonth) == "" {
			return fmt.Errorf("monthly cadence requires a day of month")
		}
		if dayOfWeek != "" {
			return fmt.Errorf("monthly cadence forbids a day of week")
		}
		for _, part := range strings.Split(dayOfMonth, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n < 1 || n > 31 {
				return fmt.Errorf("invalid day of month: %q", part)
			}
		}
	default:
		return fmt.Errorf("unknown cadence: %q", cadence)
	}
	return nil
}

func validWeekday(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if name == strings.ToLower(d.String()) {
			return true
		}
	}
	return false
}
