package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/utils"
)

// HabitFormModel backs the add-habit form. Detail is read according to
// Frequency: weekdays for "days", "N/week" or "N/month" for "times", and a
// day count for "interval".
type HabitFormModel struct {
	Title     string
	Frequency string
	Detail    string
	Remind    string
}

func NewHabitForm(fm *HabitFormModel) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Habit").
				Value(&fm.Title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("habit title cannot be empty")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Frequency").
				Options(
					huh.NewOption("Every day", "daily"),
					huh.NewOption("Specific weekdays", "days"),
					huh.NewOption("N times per week or month", "times"),
					huh.NewOption("Every N days", "interval"),
				).
				Value(&fm.Frequency),
			huh.NewInput().
				Title("Details").
				Description("days: mon,wed,fri  times: 3/week  interval: 2").
				Value(&fm.Detail).
				Validate(func(s string) error {
					_, err := parseFrequency(fm.Frequency, s)
					return err
				}),
			huh.NewInput().
				Title("Reminders").
				Description("Comma separated HH:MM times, optional").
				Value(&fm.Remind).
				Validate(func(s string) error {
					for _, t := range splitList(s) {
						if !utils.ValidateTimeFormat(t) {
							return fmt.Errorf("invalid time %q (expected HH:MM)", t)
						}
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeDracula())
}

// Habit converts the submitted form into a habit ready for creation.
func (fm *HabitFormModel) Habit() (models.Habit, error) {
	cfg, err := parseFrequency(fm.Frequency, fm.Detail)
	if err != nil {
		return models.Habit{}, err
	}
	h := models.Habit{
		Title:     strings.TrimSpace(fm.Title),
		Frequency: models.NewFrequency(cfg),
	}
	if times := splitList(fm.Remind); len(times) > 0 {
		h.Reminder = models.ReminderConfig{Enabled: true, Times: times}
	}
	return h, nil
}

func parseFrequency(kind, detail string) (models.FrequencyConfig, error) {
	detail = strings.TrimSpace(detail)
	switch kind {
	case "", "daily":
		return models.Daily{}, nil
	case "days":
		days, err := utils.ParseWeekdays(detail)
		if err != nil {
			return nil, err
		}
		if len(days) == 0 {
			return nil, errors.New("list the weekdays, e.g. mon,wed,fri")
		}
		return models.SpecificDays{Days: days}, nil
	case "times":
		if detail == "" {
			return models.TimesPerPeriod{Times: 1, Period: models.PeriodWeek}, nil
		}
		count, period, found := strings.Cut(detail, "/")
		if !found {
			period = string(models.PeriodWeek)
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid count %q", count)
		}
		p := models.Period(strings.ToLower(strings.TrimSpace(period)))
		if p != models.PeriodWeek && p != models.PeriodMonth {
			return nil, fmt.Errorf("unknown period %q (expected week or month)", period)
		}
		return models.TimesPerPeriod{Times: n, Period: p}, nil
	case "interval":
		n, err := strconv.Atoi(detail)
		if err != nil || n < 1 {
			return nil, errors.New("interval must be a positive number of days")
		}
		return models.Interval{N: n}, nil
	default:
		return nil, fmt.Errorf("unknown frequency %q", kind)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
