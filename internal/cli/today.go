package cli

import (
	"context"
	"fmt"

	"github.com/julianstephens/habitat/internal/progress"
	"github.com/julianstephens/habitat/internal/tracker"
	"github.com/julianstephens/habitat/internal/utils"
)

type TodayCmd struct {
	All bool `help:"Include habits that are not due today."`
}

func (cmd *TodayCmd) Run(ctx *Context) error {
	if err := ctx.Resume(context.Background()); err != nil {
		return err
	}

	v, err := ctx.Tracker.Today()
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Today, %s", v.Date)))
	if len(v.Items) == 0 {
		fmt.Println("No habits yet. Add one with 'habitat habit add'.")
		return nil
	}

	if v.Progress.Total == 0 {
		fmt.Println(dimStyle.Render("Rest day: nothing is due."))
	} else {
		fmt.Printf("%s %d/%d (%d%%)\n", progressBar(float64(v.Progress.Percentage)),
			v.Progress.Completed, v.Progress.Total, v.Progress.Percentage)
	}
	fmt.Println()

	for _, item := range v.Items {
		if !item.Due && !cmd.All && item.Status == "" {
			continue
		}
		line := fmt.Sprintf("%s %s", statusMark(item.Status, item.Due), habitLabel(item.Habit))
		if item.Habit.CurrentStreak > 0 {
			line += dimStyle.Render(fmt.Sprintf("  🔥 %d", item.Habit.CurrentStreak))
		}
		if item.Quota != nil {
			line += "  " + quotaLabel(*item.Quota)
		}
		if !item.Due {
			line += dimStyle.Render("  (not due)")
		}
		fmt.Println(line)
	}

	fmt.Println()
	fmt.Printf("Level %d %s %s/%s XP\n", v.Level.Level, progressBar(v.Level.Percentage),
		formatPoints(v.Level.CurrentXP), formatPoints(v.Level.NextLevelXP))
	return nil
}

type StatsCmd struct{}

func (cmd *StatsCmd) Run(ctx *Context) error {
	if err := ctx.Resume(context.Background()); err != nil {
		return err
	}

	s, err := ctx.Tracker.Stats()
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Level %d", s.Level.Level)))
	fmt.Printf("%s %s/%s XP to level %d\n", progressBar(s.Level.Percentage),
		formatPoints(s.Level.CurrentXP), formatPoints(s.Level.NextLevelXP), s.Level.Level+1)
	fmt.Printf("Total points:   %s\n", formatPoints(s.Points))
	fmt.Printf("Streak freezes: %d\n", s.StreakFreezes)
	fmt.Printf("Perfect days:   %d (current run %d)\n", s.PerfectDays, s.ConsecutivePerfectDays)
	fmt.Println()

	fmt.Println(titleStyle.Render("Last 7 days"))
	for _, d := range s.Week {
		fmt.Printf("%s %s %s\n", weekdayLabel(d.Date), progressBar(float64(d.Percentage)), dayRatio(d))
	}
	if s.PerfectWeek {
		fmt.Println(doneStyle.Render("★ Perfect week!"))
	}

	if len(s.Habits) == 0 {
		return nil
	}
	fmt.Println()
	fmt.Println(titleStyle.Render("Habits"))
	for _, h := range s.Habits {
		line := fmt.Sprintf("%-24s streak %3d  best %3d  done %s", habitLabel(h),
			h.CurrentStreak, h.LongestStreak, formatPoints(h.TotalCompletions))
		if q, ok := s.Quotas[h.ID]; ok {
			line += "  " + quotaLabel(q)
		}
		fmt.Println(line)
	}
	return nil
}

func weekdayLabel(day string) string {
	t, err := utils.ParseDay(day)
	if err != nil {
		return day
	}
	return fmt.Sprintf("%s %s", utils.ShortWeekday(t.Weekday()), day[5:])
}

// quotaLabel renders a per-period quota, highlighted once it is met.
func quotaLabel(q tracker.Quota) string {
	if q.Met() {
		return doneStyle.Render(q.String())
	}
	return dimStyle.Render(fmt.Sprintf("%s, %d to go", q, q.Remaining()))
}

func dayRatio(d progress.Daily) string {
	if d.Total == 0 {
		return dimStyle.Render("rest")
	}
	return fmt.Sprintf("%d/%d", d.Completed, d.Total)
}
