package progress

import (
	"time"

	"github.com/julianstephens/habitat/internal/constants"
	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/schedule"
	"github.com/julianstephens/habitat/internal/utils"
)

type dayOutcome int

const (
	outcomeCompleted dayOutcome = iota
	outcomeNeutral
	outcomeMissed
)

// CurrentStreak walks backward from today counting scheduled days with a
// completed log. Skipped days and days covered by a streak freeze neither
// count nor break the streak. Today does not break it while still open.
func CurrentStreak(h models.Habit, logs models.LogIndex, today time.Time, frozen map[string]bool) int {
	start, ok := walkStart(h, logs, today)
	if !ok {
		return 0
	}
	anchor := anchorDay(h, today)
	end := calendarDay(today)

	streak := 0
	for d := end; !d.Before(start); d = d.AddDate(0, 0, -1) {
		if !schedule.OnInterval(h.Frequency.Get(), anchor, d) {
			continue
		}
		switch outcome(h.ID, d, logs, frozen) {
		case outcomeCompleted:
			streak++
		case outcomeNeutral:
		case outcomeMissed:
			if d.Equal(end) {
				continue
			}
			return streak
		}
	}
	return streak
}

// LongestStreak returns the longest run found in the log, never less than
// previous so the cached value is monotonically non-decreasing.
func LongestStreak(h models.Habit, logs models.LogIndex, today time.Time, frozen map[string]bool, previous int) int {
	best := max(previous, 0)
	start, ok := walkStart(h, logs, today)
	if !ok {
		return best
	}
	anchor := anchorDay(h, today)
	end := calendarDay(today)

	run := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !schedule.OnInterval(h.Frequency.Get(), anchor, d) {
			continue
		}
		switch outcome(h.ID, d, logs, frozen) {
		case outcomeCompleted:
			run++
			best = max(best, run)
		case outcomeNeutral:
		case outcomeMissed:
			if !d.Equal(end) {
				run = 0
			}
		}
	}
	return best
}

// TotalCompletions counts the habit's completed logs.
func TotalCompletions(h models.Habit, logs models.LogIndex) int {
	n := 0
	for _, status := range logs[h.ID] {
		if status == models.LogCompleted {
			n++
		}
	}
	return n
}

// CompletionsBetween counts the habit's completed days from start to end,
// both inclusive.
func CompletionsBetween(h models.Habit, logs models.LogIndex, start, end time.Time) int {
	from := start.Format(constants.DateFormat)
	to := end.Format(constants.DateFormat)
	n := 0
	for date, status := range logs[h.ID] {
		if status == models.LogCompleted && date >= from && date <= to {
			n++
		}
	}
	return n
}

// Recompute refreshes the cached streak and completion fields of a habit.
// It is the only code path that writes them.
func Recompute(h models.Habit, logs models.LogIndex, today time.Time, frozen map[string]bool) models.Habit {
	h.CurrentStreak = CurrentStreak(h, logs, today, frozen)
	h.LongestStreak = LongestStreak(h, logs, today, frozen, max(h.LongestStreak, h.CurrentStreak))
	h.TotalCompletions = TotalCompletions(h, logs)
	return h
}

// RecomputeAll applies Recompute to every habit in place.
func RecomputeAll(habits map[string]models.Habit, logs models.LogIndex, today time.Time, frozen map[string]bool) {
	for id, h := range habits {
		habits[id] = Recompute(h, logs, today, frozen)
	}
}

func outcome(habitID string, d time.Time, logs models.LogIndex, frozen map[string]bool) dayOutcome {
	day := d.Format(constants.DateFormat)
	if status, ok := logs.Status(habitID, day); ok {
		if status == models.LogCompleted {
			return outcomeCompleted
		}
		return outcomeNeutral
	}
	if frozen[day] {
		return outcomeNeutral
	}
	return outcomeMissed
}

// walkStart is the first calendar day the streak walk may visit: the day the
// habit was created, or its earliest log when the creation time is unknown
// or later than a log (logs imported from another device).
func walkStart(h models.Habit, logs models.LogIndex, today time.Time) (time.Time, bool) {
	var start time.Time
	if !h.CreatedAt.IsZero() {
		start = anchorDay(h, today)
	}
	for day := range logs[h.ID] {
		t, err := utils.ParseDay(day)
		if err != nil {
			continue
		}
		if start.IsZero() || t.Before(start) {
			start = t
		}
	}
	if start.IsZero() || start.After(calendarDay(today)) {
		return time.Time{}, false
	}
	return start, true
}

// anchorDay is the habit's creation day in the caller's timezone.
func anchorDay(h models.Habit, today time.Time) time.Time {
	if h.CreatedAt.IsZero() {
		return time.Time{}
	}
	return calendarDay(h.CreatedAt.In(today.Location()))
}

// calendarDay strips the time of day, keeping the calendar date in UTC so
// stepping by AddDate never crosses a DST boundary.
func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
