// Package reminders derives weekly notification triggers from a habit's
// schedule and reminder times and hands them to a platform scheduler.
package reminders

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/julianstephens/habitat/internal/logger"
	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/schedule"
	"github.com/julianstephens/habitat/internal/utils"
)

// Trigger is one recurring weekly reminder.
type Trigger struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

func (t Trigger) String() string {
	return fmt.Sprintf("%s %02d:%02d", utils.ShortWeekday(t.Weekday), t.Hour, t.Minute)
}

// Scheduler materializes recurring triggers. Trigger ids it returns are not
// individually addressable afterwards; the only removal is CancelAllFor.
type Scheduler interface {
	ScheduleWeekly(ctx context.Context, habitID, title, body string, weekday time.Weekday, hour, minute int) (string, error)
	CancelAllFor(ctx context.Context, habitID string) error
}

// Derive returns one trigger per due weekday and reminder time, sorted by
// weekday then time of day. Disabled reminders derive nothing. Unparseable
// times are skipped.
func Derive(h models.Habit) []Trigger {
	if !h.Reminder.Enabled || len(h.Reminder.Times) == 0 {
		return nil
	}

	days := schedule.DueWeekdays(h.Frequency.Get())
	seen := make(map[Trigger]bool)
	var triggers []Trigger
	for _, wd := range days {
		for _, ts := range h.Reminder.Times {
			hour, minute, err := utils.ParseTimeOfDay(ts)
			if err != nil {
				continue
			}
			t := Trigger{Weekday: wd, Hour: hour, Minute: minute}
			if seen[t] {
				continue
			}
			seen[t] = true
			triggers = append(triggers, t)
		}
	}

	slices.SortFunc(triggers, func(a, b Trigger) int {
		if c := cmp.Compare(a.Weekday, b.Weekday); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Hour, b.Hour); c != 0 {
			return c
		}
		return cmp.Compare(a.Minute, b.Minute)
	})
	return triggers
}

// Body is the notification text shown for a habit reminder.
func Body(h models.Habit) string {
	if h.Icon != "" {
		return fmt.Sprintf("%s Time for %s", h.Icon, h.Title)
	}
	return fmt.Sprintf("Time for %s", h.Title)
}

// Apply replaces every trigger for the habit with the freshly derived set.
// Existing triggers are always cancelled first, even when the new set is
// empty. It returns the ids the scheduler assigned.
func Apply(ctx context.Context, s Scheduler, h models.Habit) ([]string, error) {
	if err := s.CancelAllFor(ctx, h.ID); err != nil {
		return nil, fmt.Errorf("failed to cancel reminders for %s: %w", h.ID, err)
	}

	triggers := Derive(h)
	ids := make([]string, 0, len(triggers))
	for _, t := range triggers {
		id, err := s.ScheduleWeekly(ctx, h.ID, h.Title, Body(h), t.Weekday, t.Hour, t.Minute)
		if err != nil {
			return ids, fmt.Errorf("failed to schedule reminder %s for %s: %w", t, h.ID, err)
		}
		ids = append(ids, id)
	}

	logger.Debug("Reminders applied", "habit", h.ID, "count", len(ids))
	return ids, nil
}

// Cancel removes every trigger for a deleted habit.
func Cancel(ctx context.Context, s Scheduler, habitID string) error {
	if err := s.CancelAllFor(ctx, habitID); err != nil {
		return fmt.Errorf("failed to cancel reminders for %s: %w", habitID, err)
	}
	return nil
}
