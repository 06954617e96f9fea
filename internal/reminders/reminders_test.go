package reminders

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/julianstephens/habitat/internal/models"
)

type call struct {
	op      string
	habitID string
	trigger Trigger
}

type fakeScheduler struct {
	calls     []call
	failAfter int
	cancelErr error
}

func (f *fakeScheduler) ScheduleWeekly(_ context.Context, habitID, _, _ string, weekday time.Weekday, hour, minute int) (string, error) {
	if f.failAfter > 0 && len(f.calls) >= f.failAfter {
		return "", errors.New("scheduler full")
	}
	f.calls = append(f.calls, call{op: "schedule", habitID: habitID, trigger: Trigger{weekday, hour, minute}})
	return fmt.Sprintf("t%d", len(f.calls)), nil
}

func (f *fakeScheduler) CancelAllFor(_ context.Context, habitID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.calls = append(f.calls, call{op: "cancel", habitID: habitID})
	return nil
}

func habitWith(freq models.FrequencyConfig, enabled bool, times ...string) models.Habit {
	return models.Habit{
		ID:        "h1",
		Title:     "Stretch",
		Frequency: models.NewFrequency(freq),
		Reminder:  models.ReminderConfig{Enabled: enabled, Times: times},
	}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name  string
		habit models.Habit
		want  []Trigger
	}{
		{
			name:  "disabled",
			habit: habitWith(models.Daily{}, false, "08:00"),
			want:  nil,
		},
		{
			name:  "no times",
			habit: habitWith(models.Daily{}, true),
			want:  nil,
		},
		{
			name:  "specific days times two reminders",
			habit: habitWith(models.SpecificDays{Days: []time.Weekday{time.Friday, time.Monday}}, true, "20:15", "07:00"),
			want: []Trigger{
				{time.Monday, 7, 0}, {time.Monday, 20, 15},
				{time.Friday, 7, 0}, {time.Friday, 20, 15},
			},
		},
		{
			name:  "duplicate and invalid times",
			habit: habitWith(models.SpecificDays{Days: []time.Weekday{time.Sunday}}, true, "09:00", "9:00", "25:00", "09:00"),
			want:  []Trigger{{time.Sunday, 9, 0}},
		},
		{
			name:  "daily with weekend exceptions",
			habit: habitWith(models.Daily{Exceptions: []time.Weekday{time.Saturday, time.Sunday}}, true, "06:30"),
			want: []Trigger{
				{time.Monday, 6, 30}, {time.Tuesday, 6, 30}, {time.Wednesday, 6, 30},
				{time.Thursday, 6, 30}, {time.Friday, 6, 30},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(tt.habit)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Derive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDerive_EveryDayForQuotaFrequencies(t *testing.T) {
	for _, freq := range []models.FrequencyConfig{
		models.TimesPerPeriod{Times: 3, Period: models.PeriodWeek},
		models.Interval{N: 2},
	} {
		if got := Derive(habitWith(freq, true, "12:00")); len(got) != 7 {
			t.Errorf("Derive(%T) produced %d triggers, want 7", freq, len(got))
		}
	}
}

func TestApply_FullReplace(t *testing.T) {
	s := &fakeScheduler{}
	h := habitWith(models.SpecificDays{Days: []time.Weekday{time.Wednesday}}, true, "08:00", "18:00")

	ids, err := Apply(context.Background(), s, h)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("Apply() returned %d ids, want 2", len(ids))
	}
	if s.calls[0].op != "cancel" {
		t.Errorf("first call = %q, want cancel before scheduling", s.calls[0].op)
	}

	// Turning reminders off still cancels what was there.
	s.calls = nil
	h.Reminder.Enabled = false
	ids, err = Apply(context.Background(), s, h)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if len(ids) != 0 || len(s.calls) != 1 || s.calls[0].op != "cancel" {
		t.Errorf("disabled Apply() calls = %+v, ids = %v", s.calls, ids)
	}
}

func TestApply_Errors(t *testing.T) {
	h := habitWith(models.Daily{}, true, "08:00")

	s := &fakeScheduler{cancelErr: errors.New("tray down")}
	if _, err := Apply(context.Background(), s, h); err == nil {
		t.Error("expected cancel failure to surface")
	}
	if len(s.calls) != 0 {
		t.Error("nothing should be scheduled after a failed cancel")
	}

	s = &fakeScheduler{failAfter: 3}
	ids, err := Apply(context.Background(), s, h)
	if err == nil {
		t.Error("expected schedule failure to surface")
	}
	if len(ids) != 2 {
		t.Errorf("ids before failure = %d, want 2", len(ids))
	}
}

func TestCancel(t *testing.T) {
	s := &fakeScheduler{}
	if err := Cancel(context.Background(), s, "h9"); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if len(s.calls) != 1 || s.calls[0].habitID != "h9" {
		t.Errorf("calls = %+v", s.calls)
	}
}

func TestBody(t *testing.T) {
	h := models.Habit{Title: "Read"}
	if got := Body(h); got != "Time for Read" {
		t.Errorf("Body() = %q", got)
	}
	h.Icon = "📚"
	if got := Body(h); got != "📚 Time for Read" {
		t.Errorf("Body() = %q", got)
	}
}
