package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/remote"
	"github.com/julianstephens/habitat/internal/state"
	"github.com/julianstephens/habitat/internal/syncer"
	"github.com/julianstephens/habitat/internal/tracker"
	"github.com/julianstephens/habitat/internal/tui/components/habitlist"
)

var testNow = time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

func newTracker(t *testing.T) *tracker.Service {
	t.Helper()
	store := state.New(nil)
	clock := func() time.Time { return testNow }
	coord := syncer.New(store, remote.NewMemoryStore(), syncer.Options{
		Retry:     syncer.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond},
		Recompute: tracker.Refresher(time.UTC, clock),
		Now:       clock,
	})
	require.NoError(t, coord.Login(context.Background(), "alice"))
	return tracker.New(store, coord, tracker.Options{Location: time.UTC, Now: clock})
}

func addHabit(t *testing.T, svc *tracker.Service, title string) models.Habit {
	t.Helper()
	h, _, err := svc.CreateHabit(context.Background(), models.Habit{
		Title:     title,
		Frequency: models.NewFrequency(models.Daily{}),
	})
	require.NoError(t, err)
	return h
}

func newSizedModel(t *testing.T, svc *tracker.Service) Model {
	t.Helper()
	m := NewModel(context.Background(), svc)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

// send feeds msg to the model and then runs any command it returns once,
// feeding the result back.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd != nil {
		if out := cmd(); out != nil {
			next, _ = m.Update(out)
			m = next.(Model)
		}
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel_Empty(t *testing.T) {
	m := newSizedModel(t, newTracker(t))
	assert.Contains(t, m.View(), "No habits yet")
	assert.Empty(t, m.Outcomes())
}

func TestDoneKey_CompletesSelectedHabit(t *testing.T) {
	svc := newTracker(t)
	addHabit(t, svc, "Read")
	m := newSizedModel(t, svc)

	_, cmd := m.Update(runes("x"))
	require.NotNil(t, cmd)
	msg, ok := cmd().(habitlist.DoneMsg)
	require.True(t, ok, "x should emit a done message")
	assert.Equal(t, "Read", msg.Habit.Title)

	m = send(t, m, msg)
	require.NoError(t, m.err)
	assert.Equal(t, 1, m.view.Progress.Completed)
	assert.Len(t, m.Outcomes(), 1)
	assert.Contains(t, m.status, "✓ Read")
	assert.Contains(t, m.status, "perfect day")
}

func TestSkipAndUndo(t *testing.T) {
	svc := newTracker(t)
	h := addHabit(t, svc, "Run")
	m := newSizedModel(t, svc)

	m = send(t, m, habitlist.SkipMsg{Habit: h})
	require.NoError(t, m.err)
	require.Len(t, m.view.Items, 1)
	assert.Equal(t, models.LogSkipped, m.view.Items[0].Status)

	m = send(t, m, habitlist.UndoMsg{Habit: h})
	require.NoError(t, m.err)
	assert.Empty(t, m.view.Items[0].Status)
}

func TestDeleteHabit_RequiresConfirmation(t *testing.T) {
	svc := newTracker(t)
	h := addHabit(t, svc, "Stretch")
	m := newSizedModel(t, svc)

	m = send(t, m, habitlist.DeleteHabitMsg{Habit: h})
	assert.Equal(t, StateConfirmDelete, m.state)
	assert.Contains(t, m.View(), "Stretch")

	m = send(t, m, runes("n"))
	assert.Equal(t, StateToday, m.state)
	assert.Len(t, m.view.Items, 1)

	m = send(t, m, habitlist.DeleteHabitMsg{Habit: h})
	m = send(t, m, runes("y"))
	assert.Equal(t, StateToday, m.state)
	assert.Empty(t, m.view.Items)
}

func TestFreeze_OncePerDay(t *testing.T) {
	m := newSizedModel(t, newTracker(t))

	m = send(t, m, runes("f"))
	require.NoError(t, m.err)
	assert.Contains(t, m.status, "Streak freeze applied")

	m = send(t, m, runes("f"))
	require.NoError(t, m.err)
	assert.Contains(t, m.status, "No streak freeze")
}

func TestTabs(t *testing.T) {
	svc := newTracker(t)
	addHabit(t, svc, "Read")
	m := newSizedModel(t, svc)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	assert.Equal(t, StateOverview, m.state)
	assert.Contains(t, m.View(), "Badges")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = next.(Model)
	assert.Equal(t, StateToday, m.state)
}

func TestAddHabit_OpensForm(t *testing.T) {
	m := newSizedModel(t, newTracker(t))

	next, _ := m.Update(habitlist.AddHabitMsg{})
	m = next.(Model)
	assert.Equal(t, StateAddHabit, m.state)
	require.NotNil(t, m.form)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	assert.Equal(t, StateToday, m.state)
}

func TestQuit(t *testing.T) {
	m := newSizedModel(t, newTracker(t))
	next, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, next.View())
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		kind, detail string
		want         models.FrequencyConfig
		wantErr      bool
	}{
		{"daily", "", models.Daily{}, false},
		{"days", "mon,fri", models.SpecificDays{Days: []time.Weekday{time.Monday, time.Friday}}, false},
		{"days", "", nil, true},
		{"times", "3/week", models.TimesPerPeriod{Times: 3, Period: models.PeriodWeek}, false},
		{"times", "2/Month", models.TimesPerPeriod{Times: 2, Period: models.PeriodMonth}, false},
		{"times", "4", models.TimesPerPeriod{Times: 4, Period: models.PeriodWeek}, false},
		{"times", "0/week", nil, true},
		{"times", "3/year", nil, true},
		{"interval", "3", models.Interval{N: 3}, false},
		{"interval", "0", nil, true},
		{"hourly", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"_"+tt.detail, func(t *testing.T) {
			got, err := parseFrequency(tt.kind, tt.detail)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHabitFormModel_Habit(t *testing.T) {
	fm := &HabitFormModel{Title: "  Meditate ", Frequency: "interval", Detail: "2", Remind: "07:00, 21:30"}
	h, err := fm.Habit()
	require.NoError(t, err)
	assert.Equal(t, "Meditate", h.Title)
	assert.Equal(t, models.Interval{N: 2}, h.Frequency.Get())
	assert.True(t, h.Reminder.Enabled)
	assert.Equal(t, []string{"07:00", "21:30"}, h.Reminder.Times)
	assert.NoError(t, h.Validate())

	fm = &HabitFormModel{Title: "Walk", Frequency: "daily"}
	h, err = fm.Habit()
	require.NoError(t, err)
	assert.False(t, h.Reminder.Enabled)
}

func TestDescribeOutcome(t *testing.T) {
	assert.Equal(t, "done", describeOutcome("done", nil))
	got := describeOutcome("done", &tracker.Outcome{PerfectDay: true, FreezesGranted: 1})
	assert.True(t, strings.HasPrefix(got, "done"))
	assert.Contains(t, got, "perfect day!")
	assert.Contains(t, got, "+1 streak freeze")
}

func TestHabitItem_ShowsQuota(t *testing.T) {
	h := models.Habit{
		Title:     "Gym",
		Frequency: models.NewFrequency(models.TimesPerPeriod{Times: 3, Period: models.PeriodWeek}),
	}

	item := habitlist.Item{TodayItem: tracker.TodayItem{
		Habit: h,
		Due:   true,
		Quota: &tracker.Quota{Period: models.PeriodWeek, Target: 3, Done: 2},
	}}
	assert.Contains(t, item.Description(), "2/3 this week")
	assert.NotContains(t, item.Description(), "✓")

	item.Quota.Done = 3
	assert.Contains(t, item.Description(), "3/3 this week ✓")

	item.Quota = nil
	assert.NotContains(t, item.Description(), "this week")
}
