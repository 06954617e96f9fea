package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/reminders"
	"github.com/julianstephens/habitat/internal/schedule"
	"github.com/julianstephens/habitat/internal/tracker"
	"github.com/julianstephens/habitat/internal/utils"
)

// minPrefixLen is the shortest id prefix accepted as a habit reference.
const minPrefixLen = 4

type HabitCmd struct {
	Add    HabitAddCmd    `cmd:"" help:"Add a new habit."`
	List   HabitListCmd   `cmd:"" help:"List habits."`
	Show   HabitShowCmd   `cmd:"" help:"Show a habit and its reminders."`
	Edit   HabitEditCmd   `cmd:"" help:"Edit an existing habit."`
	Delete HabitDeleteCmd `cmd:"" help:"Delete a habit and its history."`
}

// FrequencyFlags describe a schedule on the command line.
type FrequencyFlags struct {
	Frequency string `short:"f" help:"Schedule: daily, days, times or interval."`
	Days      string `help:"Weekdays for 'days' (e.g. mon,wed,fri)."`
	Except    string `help:"Weekdays a daily habit is not due."`
	Times     int    `help:"Completions per period for 'times'."`
	Period    string `help:"Period for 'times': week or month."`
	Every     int    `help:"Days between occurrences for 'interval'."`
}

func (f FrequencyFlags) set() bool {
	return f.Frequency != ""
}

// Build turns the flags into a frequency config. An empty --frequency
// means daily.
func (f FrequencyFlags) Build() (models.FrequencyConfig, error) {
	switch strings.ToLower(f.Frequency) {
	case "", "daily":
		except, err := utils.ParseWeekdays(f.Except)
		if err != nil {
			return nil, err
		}
		return models.Daily{Exceptions: except}, nil
	case "days", "specific", "specific_days":
		days, err := utils.ParseWeekdays(f.Days)
		if err != nil {
			return nil, err
		}
		if len(days) == 0 {
			return nil, errors.New("--days is required for 'days' habits")
		}
		return models.SpecificDays{Days: days}, nil
	case "times", "x_times_per_period":
		times := f.Times
		if times == 0 {
			times = 1
		}
		period := models.Period(strings.ToLower(f.Period))
		if period == "" {
			period = models.PeriodWeek
		}
		return models.TimesPerPeriod{Times: times, Period: period}, nil
	case "interval":
		if f.Every < 1 {
			return nil, errors.New("--every must be at least 1 for 'interval' habits")
		}
		return models.Interval{N: f.Every}, nil
	default:
		return nil, fmt.Errorf("unknown frequency %q (expected daily, days, times or interval)", f.Frequency)
	}
}

func parseRemind(s string) []string {
	var times []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			times = append(times, t)
		}
	}
	return times
}

// findHabit resolves ref by exact id, then unique id prefix, then title.
func findHabit(habits []models.Habit, ref string) (models.Habit, error) {
	ref = cleanTitle(ref)
	if ref == "" {
		return models.Habit{}, errors.New("habit reference cannot be empty")
	}

	for _, h := range habits {
		if h.ID == ref {
			return h, nil
		}
	}

	var matches []models.Habit
	if len(ref) >= minPrefixLen {
		for _, h := range habits {
			if strings.HasPrefix(h.ID, ref) {
				matches = append(matches, h)
			}
		}
	}
	if len(matches) == 0 {
		for _, h := range habits {
			if strings.EqualFold(cleanTitle(h.Title), ref) {
				matches = append(matches, h)
			}
		}
	}

	switch len(matches) {
	case 0:
		return models.Habit{}, fmt.Errorf("%w: %q", tracker.ErrHabitNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, h := range matches {
			ids[i] = shortID(h.ID)
		}
		return models.Habit{}, fmt.Errorf("%q is ambiguous, matches %s", ref, strings.Join(ids, ", "))
	}
}

func (c *Context) resolveHabit(ref string) (models.Habit, error) {
	habits, err := c.Tracker.Habits()
	if err != nil {
		return models.Habit{}, err
	}
	return findHabit(habits, ref)
}

type HabitAddCmd struct {
	Title          string `arg:"" help:"Habit title."`
	Icon           string `help:"Emoji shown next to the title."`
	Color          string `help:"Display color (e.g. #ff8800)."`
	Remind         string `help:"Comma-separated reminder times (HH:MM)."`
	FrequencyFlags `embed:""`
}

func (cmd *HabitAddCmd) Run(ctx *Context) error {
	bg := context.Background()
	if err := ctx.Resume(bg); err != nil {
		return err
	}

	title := cleanTitle(cmd.Title)
	habits, err := ctx.Tracker.Habits()
	if err != nil {
		return err
	}
	if slices.ContainsFunc(habits, func(h models.Habit) bool { return strings.EqualFold(h.Title, title) }) {
		return fmt.Errorf("habit with title %q already exists", title)
	}

	freq, err := cmd.Build()
	if err != nil {
		return err
	}
	h := models.Habit{
		Title:     title,
		Icon:      cmd.Icon,
		Color:     cmd.Color,
		Frequency: models.NewFrequency(freq),
	}
	if times := parseRemind(cmd.Remind); len(times) > 0 {
		h.Reminder = models.ReminderConfig{Enabled: true, Times: times}
	}

	created, out, err := ctx.Tracker.CreateHabit(bg, h)
	if err != nil {
		return err
	}

	fmt.Printf("Added habit: %s (%s)\n", habitLabel(created), shortID(created.ID))
	fmt.Printf("  %s\n", describeHabit(created))
	ctx.report(out)
	return nil
}

type HabitListCmd struct{}

func (cmd *HabitListCmd) Run(ctx *Context) error {
	if err := ctx.Resume(context.Background()); err != nil {
		return err
	}

	habits, err := ctx.Tracker.Habits()
	if err != nil {
		return err
	}
	if len(habits) == 0 {
		fmt.Println("No habits found. Add one with 'habitat habit add'.")
		return nil
	}

	for _, h := range habits {
		fmt.Printf("%s  %s\n", dimStyle.Render(shortID(h.ID)), habitLabel(h))
		fmt.Printf("          %s | streak %d (best %d) | %d done\n",
			describeHabit(h), h.CurrentStreak, h.LongestStreak, h.TotalCompletions)
	}
	return nil
}

type HabitShowCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix or title."`
}

func (cmd *HabitShowCmd) Run(ctx *Context) error {
	if err := ctx.Resume(context.Background()); err != nil {
		return err
	}
	h, err := ctx.resolveHabit(cmd.Habit)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(habitLabel(h)))
	fmt.Printf("ID:          %s\n", h.ID)
	fmt.Printf("Schedule:    %s\n", schedule.Describe(h.Frequency.Get()))
	fmt.Printf("Created:     %s\n", h.CreatedDay(ctx.Location))
	fmt.Printf("Streak:      %d (best %d)\n", h.CurrentStreak, h.LongestStreak)
	fmt.Printf("Completions: %d\n", h.TotalCompletions)
	fmt.Printf("Per week:    %d\n", schedule.WeeklyTarget(h.Frequency.Get()))

	q, err := ctx.Tracker.Quota(h.ID)
	if err != nil {
		return err
	}
	if q != nil {
		fmt.Printf("Quota:       %s\n", quotaLabel(*q))
	}

	triggers := reminders.Derive(h)
	if len(triggers) == 0 {
		fmt.Println("Reminders:   none")
		return nil
	}
	fmt.Println("Reminders:")
	for _, t := range triggers {
		fmt.Printf("  %s\n", t)
	}
	return nil
}

type HabitEditCmd struct {
	Habit          string  `arg:"" help:"Habit id, id prefix or title."`
	Title          *string `help:"New title."`
	Icon           *string `help:"New icon."`
	Color          *string `help:"New color."`
	Remind         *string `help:"Comma-separated reminder times (HH:MM)."`
	NoRemind       bool    `help:"Turn reminders off."`
	FrequencyFlags `embed:""`
}

func (cmd *HabitEditCmd) Run(ctx *Context) error {
	bg := context.Background()
	if err := ctx.Resume(bg); err != nil {
		return err
	}
	h, err := ctx.resolveHabit(cmd.Habit)
	if err != nil {
		return err
	}

	var freq models.FrequencyConfig
	if cmd.FrequencyFlags.set() {
		if freq, err = cmd.Build(); err != nil {
			return err
		}
	}
	if cmd.NoRemind && cmd.Remind != nil {
		return errors.New("--remind and --no-remind cannot be combined")
	}

	updated, out, err := ctx.Tracker.UpdateHabit(bg, h.ID, func(h *models.Habit) {
		if cmd.Title != nil {
			h.Title = cleanTitle(*cmd.Title)
		}
		if cmd.Icon != nil {
			h.Icon = *cmd.Icon
		}
		if cmd.Color != nil {
			h.Color = *cmd.Color
		}
		if freq != nil {
			h.Frequency = models.NewFrequency(freq)
		}
		switch {
		case cmd.NoRemind:
			h.Reminder = models.ReminderConfig{}
		case cmd.Remind != nil:
			times := parseRemind(*cmd.Remind)
			h.Reminder = models.ReminderConfig{Enabled: len(times) > 0, Times: times}
		}
	})
	if err != nil {
		return err
	}

	fmt.Printf("Updated habit: %s\n", habitLabel(updated))
	fmt.Printf("  %s\n", describeHabit(updated))
	ctx.report(out)
	return nil
}

type HabitDeleteCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix or title."`
}

func (cmd *HabitDeleteCmd) Run(ctx *Context) error {
	bg := context.Background()
	if err := ctx.Resume(bg); err != nil {
		return err
	}
	h, err := ctx.resolveHabit(cmd.Habit)
	if err != nil {
		return err
	}

	out, err := ctx.Tracker.DeleteHabit(bg, h.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted habit: %s\n", habitLabel(h))
	ctx.report(out)
	return nil
}
