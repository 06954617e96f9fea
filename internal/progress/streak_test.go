package progress

import (
	"testing"
	"time"

	"github.com/julianstephens/habitat/internal/models"
)

func dailyHabit(createdDay int) models.Habit {
	return models.Habit{
		ID:        "h",
		Frequency: models.NewFrequency(models.Daily{}),
		CreatedAt: day(createdDay),
	}
}

func TestCurrentStreak(t *testing.T) {
	tests := []struct {
		name   string
		habit  models.Habit
		logs   []models.HabitLog
		today  time.Time
		frozen map[string]bool
		want   int
	}{
		{
			name:  "no logs",
			habit: dailyHabit(1),
			today: day(10),
			want:  0,
		},
		{
			name:  "three consecutive including today",
			habit: dailyHabit(1),
			logs:  completed("h", "2026-01-08", "2026-01-09", "2026-01-10"),
			today: day(10),
			want:  3,
		},
		{
			name:  "today still open",
			habit: dailyHabit(1),
			logs:  completed("h", "2026-01-08", "2026-01-09"),
			today: day(10),
			want:  2,
		},
		{
			name:  "gap breaks",
			habit: dailyHabit(1),
			logs:  completed("h", "2026-01-06", "2026-01-08", "2026-01-09"),
			today: day(9),
			want:  2,
		},
		{
			name:  "missed yesterday",
			habit: dailyHabit(1),
			logs:  completed("h", "2026-01-07", "2026-01-08"),
			today: day(10),
			want:  0,
		},
		{
			name:   "frozen day bridges the gap",
			habit:  dailyHabit(1),
			logs:   completed("h", "2026-01-06", "2026-01-08", "2026-01-09"),
			today:  day(9),
			frozen: map[string]bool{"2026-01-07": true},
			want:   3,
		},
		{
			name:  "skipped day is neutral",
			habit: dailyHabit(1),
			logs: append(completed("h", "2026-01-06", "2026-01-08"),
				models.HabitLog{HabitID: "h", Date: "2026-01-07", Status: models.LogSkipped}),
			today: day(8),
			want:  2,
		},
		{
			name: "non-due days are skipped",
			habit: models.Habit{
				ID:        "h",
				Frequency: models.NewFrequency(models.SpecificDays{Days: []time.Weekday{time.Monday, time.Wednesday, time.Friday}}),
				CreatedAt: day(1),
			},
			logs:  completed("h", "2026-01-05", "2026-01-07", "2026-01-09"),
			today: day(11), // Sunday
			want:  3,
		},
		{
			name: "interval anchored on creation",
			habit: models.Habit{
				ID:        "h",
				Frequency: models.NewFrequency(models.Interval{N: 3}),
				CreatedAt: day(1),
			},
			logs:  completed("h", "2026-01-01", "2026-01-04", "2026-01-07"),
			today: day(9),
			want:  3,
		},
		{
			name:  "walk stops at creation",
			habit: dailyHabit(8),
			logs:  completed("h", "2026-01-08", "2026-01-09"),
			today: day(9),
			want:  2,
		},
		{
			name:  "unknown creation falls back to earliest log",
			habit: models.Habit{ID: "h", Frequency: models.NewFrequency(models.Daily{})},
			logs:  completed("h", "2026-01-08", "2026-01-09"),
			today: day(9),
			want:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CurrentStreak(tt.habit, models.NewLogIndex(tt.logs), tt.today, tt.frozen)
			if got != tt.want {
				t.Errorf("CurrentStreak() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLongestStreak(t *testing.T) {
	h := dailyHabit(1)
	logs := models.NewLogIndex(completed("h",
		"2026-01-01", "2026-01-02", "2026-01-03", "2026-01-04",
		"2026-01-06", "2026-01-07",
	))

	if got := LongestStreak(h, logs, day(7), nil, 0); got != 4 {
		t.Errorf("LongestStreak() = %d, want 4", got)
	}
	if got := LongestStreak(h, logs, day(7), nil, 9); got != 9 {
		t.Errorf("LongestStreak() must not drop below previous, got %d", got)
	}
}

func TestCompletionsBetween(t *testing.T) {
	h := dailyHabit(1)
	logs := append(completed("h", "2026-01-04", "2026-01-05", "2026-01-07", "2026-01-11", "2026-01-12"),
		models.HabitLog{HabitID: "h", Date: "2026-01-06", Status: models.LogSkipped})
	idx := models.NewLogIndex(logs)

	if got := CompletionsBetween(h, idx, day(5), day(11)); got != 3 {
		t.Errorf("CompletionsBetween(week) = %d, want 3", got)
	}
	if got := CompletionsBetween(h, idx, day(7), day(7)); got != 1 {
		t.Errorf("CompletionsBetween(single day) = %d, want 1", got)
	}
	if got := CompletionsBetween(models.Habit{ID: "other"}, idx, day(1), day(31)); got != 0 {
		t.Errorf("CompletionsBetween(other habit) = %d, want 0", got)
	}
}

func TestRecompute(t *testing.T) {
	h := dailyHabit(1)
	h.LongestStreak = 2
	logs := models.NewLogIndex(append(
		completed("h", "2026-01-07", "2026-01-08", "2026-01-09"),
		models.HabitLog{HabitID: "h", Date: "2026-01-05", Status: models.LogSkipped},
	))

	got := Recompute(h, logs, day(9), nil)
	if got.CurrentStreak != 3 || got.LongestStreak != 3 || got.TotalCompletions != 3 {
		t.Errorf("Recompute() = current %d, longest %d, total %d", got.CurrentStreak, got.LongestStreak, got.TotalCompletions)
	}

	// Undoing every log drops the current streak but keeps the longest.
	got = Recompute(got, models.NewLogIndex(nil), day(9), nil)
	if got.CurrentStreak != 0 || got.LongestStreak != 3 || got.TotalCompletions != 0 {
		t.Errorf("after undo: current %d, longest %d, total %d", got.CurrentStreak, got.LongestStreak, got.TotalCompletions)
	}
}

func TestRecomputeAll(t *testing.T) {
	habits := map[string]models.Habit{"h": dailyHabit(1)}
	RecomputeAll(habits, models.NewLogIndex(completed("h", "2026-01-09")), day(9), nil)
	if habits["h"].CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1", habits["h"].CurrentStreak)
	}
}
