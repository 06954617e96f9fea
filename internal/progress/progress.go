// Package progress derives completion ratios and streaks from the habit log.
// Results are recomputed in full on every change; nothing here fails.
package progress

import (
	"math"
	"time"

	"github.com/julianstephens/habitat/internal/constants"
	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/schedule"
)

// Daily is the completion ratio of the habits due on one day.
type Daily struct {
	Date       string `json:"date"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// IsPerfect reports whether every due habit was completed. Rest days
// (nothing due) are never perfect.
func (d Daily) IsPerfect() bool {
	return d.Total > 0 && d.Completed == d.Total
}

// DailyProgress counts the habits due on date and how many of them have a
// completed log for that day.
func DailyProgress(habits []models.Habit, logs models.LogIndex, date time.Time) Daily {
	day := date.Format(constants.DateFormat)
	d := Daily{Date: day}
	for _, h := range habits {
		if !schedule.IsDue(h.Frequency.Get(), date) {
			continue
		}
		d.Total++
		if logs.Completed(h.ID, day) {
			d.Completed++
		}
	}
	d.Percentage = percentage(d.Completed, d.Total)
	return d
}

// IsPerfectDay is DailyProgress(...).IsPerfect().
func IsPerfectDay(habits []models.Habit, logs models.LogIndex, date time.Time) bool {
	return DailyProgress(habits, logs, date).IsPerfect()
}

// WeekCompletion returns the daily progress of the seven days ending at end,
// oldest first.
func WeekCompletion(habits []models.Habit, logs models.LogIndex, end time.Time) []Daily {
	days := make([]Daily, 0, 7)
	for i := 6; i >= 0; i-- {
		days = append(days, DailyProgress(habits, logs, end.AddDate(0, 0, -i)))
	}
	return days
}

// IsPerfectWeek reports whether all seven days ending at end were perfect.
func IsPerfectWeek(habits []models.Habit, logs models.LogIndex, end time.Time) bool {
	for _, d := range WeekCompletion(habits, logs, end) {
		if !d.IsPerfect() {
			return false
		}
	}
	return true
}

func percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(completed) / float64(total) * 100))
	return max(0, min(100, p))
}
