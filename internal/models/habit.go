package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/habitat/internal/constants"
)

// ReminderConfig holds the wall-clock times a habit should be reminded at.
type ReminderConfig struct {
	Enabled bool     `json:"enabled"`
	Times   []string `json:"times,omitempty"` // HH:MM format
}

// Habit represents a recurring practice to track.
//
// CurrentStreak, LongestStreak and TotalCompletions are a cache of values
// derived from the habit's logs. Only progress.Recompute writes them.
type Habit struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Icon             string         `json:"icon,omitempty"`
	Color            string         `json:"color,omitempty"`
	Frequency        Frequency      `json:"frequency"`
	Reminder         ReminderConfig `json:"reminder"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	CurrentStreak    int            `json:"current_streak"`
	LongestStreak    int            `json:"longest_streak"`
	TotalCompletions int            `json:"total_completions"`
}

// Validate checks user input before it reaches the core. The resolver itself
// accepts any well-typed config.
func (h *Habit) Validate() error {
	if strings.TrimSpace(h.Title) == "" {
		return fmt.Errorf("habit title cannot be empty")
	}

	switch c := h.Frequency.Get().(type) {
	case Daily:
		if len(c.Exceptions) >= 7 {
			return fmt.Errorf("daily habit cannot except every day of the week")
		}
		if err := validateWeekdays(c.Exceptions); err != nil {
			return err
		}
	case SpecificDays:
		if len(c.Days) == 0 {
			return fmt.Errorf("weekdays must be specified for specific_days frequency")
		}
		if err := validateWeekdays(c.Days); err != nil {
			return err
		}
	case TimesPerPeriod:
		if c.Times < 1 {
			return fmt.Errorf("times must be at least 1 for x_times_per_period frequency")
		}
		if c.Period != PeriodWeek && c.Period != PeriodMonth {
			return fmt.Errorf("invalid period %q (expected week or month)", c.Period)
		}
		if c.Period == PeriodWeek && c.Times > 7 {
			return fmt.Errorf("times cannot exceed 7 per week")
		}
	case Interval:
		if c.N < 1 {
			return fmt.Errorf("interval must be at least 1 day")
		}
	default:
		panic(fmt.Sprintf("models: unhandled frequency config %T", c))
	}

	if h.Reminder.Enabled && len(h.Reminder.Times) == 0 {
		return fmt.Errorf("reminder times must be specified when reminders are enabled")
	}
	for _, t := range h.Reminder.Times {
		if _, err := time.Parse(constants.TimeFormat, t); err != nil {
			return fmt.Errorf("invalid reminder time %q (expected HH:MM): %w", t, err)
		}
	}

	return nil
}

// CreatedDay returns the calendar day the habit was created on, in loc.
func (h *Habit) CreatedDay(loc *time.Location) string {
	if h.CreatedAt.IsZero() {
		return ""
	}
	return h.CreatedAt.In(loc).Format(constants.DateFormat)
}

func validateWeekdays(days []time.Weekday) error {
	for _, wd := range days {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("invalid weekday: %d", wd)
		}
	}
	return nil
}
