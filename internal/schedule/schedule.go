// Package schedule decides which days a habit is due and describes its
// frequency for display. Everything here is a pure function of its inputs.
package schedule

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/utils"
)

var allWeekdays = []time.Weekday{
	time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
	time.Thursday, time.Friday, time.Saturday,
}

// displayOrder lists weekdays the way they are shown to users (week starts Monday).
var displayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// IsDue determines if a habit with the given frequency is actionable on date.
// x_times_per_period and interval habits are always available; their quota is
// enforced by completion counts, not by day gating.
func IsDue(cfg models.FrequencyConfig, date time.Time) bool {
	switch c := cfg.(type) {
	case nil:
		return true
	case models.Daily:
		return !models.ContainsWeekday(c.Exceptions, date.Weekday())
	case models.SpecificDays:
		return models.ContainsWeekday(c.Days, date.Weekday())
	case models.TimesPerPeriod:
		return true
	case models.Interval:
		return true
	default:
		panic(fmt.Sprintf("schedule: unhandled frequency config %T", c))
	}
}

// OnInterval is IsDue with interval habits pinned to an anchor day: the
// habit is scheduled on the anchor and every N days after it. A zero anchor
// falls back to IsDue.
func OnInterval(cfg models.FrequencyConfig, anchor, date time.Time) bool {
	c, ok := cfg.(models.Interval)
	if !ok || anchor.IsZero() {
		return IsDue(cfg, date)
	}
	if c.N <= 1 {
		return true
	}
	days := utils.DaysBetween(anchor, date)
	return days >= 0 && days%c.N == 0
}

// DueWeekdays returns the weekdays on which the habit can be due, Sunday first.
func DueWeekdays(cfg models.FrequencyConfig) []time.Weekday {
	var days []time.Weekday
	for _, wd := range allWeekdays {
		// Any date falling on wd will do; 2024-01-07 is a Sunday.
		sample := time.Date(2024, 1, 7+int(wd), 0, 0, 0, 0, time.UTC)
		if IsDue(cfg, sample) {
			days = append(days, wd)
		}
	}
	return days
}

// WeeklyTarget estimates how many completions a habit expects in 7 days.
func WeeklyTarget(cfg models.FrequencyConfig) int {
	switch c := cfg.(type) {
	case nil:
		return 7
	case models.Daily:
		return 7 - len(uniqueWeekdays(c.Exceptions))
	case models.SpecificDays:
		return len(uniqueWeekdays(c.Days))
	case models.TimesPerPeriod:
		if c.Times <= 0 {
			return 0
		}
		if c.Period == models.PeriodMonth {
			return max(1, int(math.Round(float64(c.Times)*7/30)))
		}
		return c.Times
	case models.Interval:
		n := c.N
		if n < 1 {
			n = 1
		}
		return 7 / n
	default:
		panic(fmt.Sprintf("schedule: unhandled frequency config %T", c))
	}
}

// QuotaPeriod returns the first and last day of the calendar period a
// TimesPerPeriod quota is counted in: the Monday to Sunday week or the month
// containing date. ok is false for every other frequency.
func QuotaPeriod(cfg models.FrequencyConfig, date time.Time) (start, end time.Time, ok bool) {
	c, isQuota := cfg.(models.TimesPerPeriod)
	if !isQuota {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := date.Date()
	if c.Period == models.PeriodMonth {
		start = time.Date(y, m, 1, 0, 0, 0, 0, date.Location())
		return start, start.AddDate(0, 1, -1), true
	}
	back := (int(date.Weekday()) + 6) % 7
	start = time.Date(y, m, d-back, 0, 0, 0, 0, date.Location())
	return start, start.AddDate(0, 0, 6), true
}

// Describe produces a short human summary of a frequency config.
func Describe(cfg models.FrequencyConfig) string {
	switch c := cfg.(type) {
	case nil:
		return "Every day"
	case models.Daily:
		if len(c.Exceptions) == 0 {
			return "Every day"
		}
		return describeDays(DueWeekdays(c))
	case models.SpecificDays:
		return describeDays(uniqueWeekdays(c.Days))
	case models.TimesPerPeriod:
		unit := "times"
		if c.Times == 1 {
			unit = "time"
		}
		period := "week"
		if c.Period == models.PeriodMonth {
			period = "month"
		}
		return fmt.Sprintf("%d %s a %s", c.Times, unit, period)
	case models.Interval:
		if c.N <= 1 {
			return "Every day"
		}
		return fmt.Sprintf("Every %d days", c.N)
	default:
		panic(fmt.Sprintf("schedule: unhandled frequency config %T", c))
	}
}

func describeDays(days []time.Weekday) string {
	switch {
	case len(days) == 0:
		return "No days selected"
	case len(days) == 7:
		return "Every day"
	case sameDays(days, time.Saturday, time.Sunday):
		return "Weekends only"
	case sameDays(days, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday):
		return "Weekdays only"
	}

	var names []string
	for _, wd := range displayOrder {
		if slices.Contains(days, wd) {
			names = append(names, utils.ShortWeekday(wd))
		}
	}
	if len(names) <= 3 {
		return "Only on " + strings.Join(names, ", ")
	}
	return strings.Join(names, ", ")
}

func sameDays(days []time.Weekday, want ...time.Weekday) bool {
	if len(days) != len(want) {
		return false
	}
	for _, wd := range want {
		if !slices.Contains(days, wd) {
			return false
		}
	}
	return true
}

func uniqueWeekdays(days []time.Weekday) []time.Weekday {
	var out []time.Weekday
	for _, wd := range allWeekdays {
		if slices.Contains(days, wd) {
			out = append(out, wd)
		}
	}
	return out
}
