package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitat/internal/tracker"
	"github.com/julianstephens/habitat/internal/tui/components/habitlist"
)

// mutatedMsg reports a finished tracker mutation.
type mutatedMsg struct {
	note string
	out  *tracker.Outcome
	err  error
}

func (m Model) mutate(note string, fn func(ctx context.Context) (*tracker.Outcome, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		out, err := fn(ctx)
		return mutatedMsg{note: note, out: out, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		h, v := docStyle.GetFrameSize()
		m.habits.SetSize(msg.Width-h, msg.Height-v-4)
		m.overview.SetSize(msg.Width-h, msg.Height-v-4)
		return m, nil

	case mutatedMsg:
		m.applyMutation(msg)
		return m, nil
	}

	switch m.state {
	case StateAddHabit:
		return m.updateAddHabit(msg)
	case StateConfirmDelete:
		return m.updateConfirmDelete(msg)
	}

	if handled, cmd := m.handleHabitMessages(msg); handled {
		return m, cmd
	}

	if msg, ok := msg.(tea.KeyMsg); ok && !m.habits.Filtering() {
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Tab):
			m.state = (m.state + 1) % tabCount
			return m, nil
		case key.Matches(msg, m.keys.ShiftTab):
			m.state = (m.state - 1 + tabCount) % tabCount
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			m.err = nil
			m.reload()
			return m, nil
		case key.Matches(msg, m.keys.Freeze):
			return m, m.freeze()
		}
	}

	var cmd tea.Cmd
	switch m.state {
	case StateToday:
		m.habits, cmd = m.habits.Update(msg)
	case StateOverview:
		m.overview, cmd = m.overview.Update(msg)
	}
	return m, cmd
}

func (m Model) freeze() tea.Cmd {
	t := m.tracker
	ctx := m.ctx
	return func() tea.Msg {
		used, out, err := t.UseStreakFreeze(ctx)
		note := "Streak freeze applied to today"
		if err == nil && !used {
			note = "No streak freeze available for today"
		}
		return mutatedMsg{note: note, out: out, err: err}
	}
}

func (m *Model) handleHabitMessages(msg tea.Msg) (bool, tea.Cmd) {
	t := m.tracker
	switch msg := msg.(type) {
	case habitlist.AddHabitMsg:
		m.habitForm = &HabitFormModel{Frequency: "daily"}
		m.form = NewHabitForm(m.habitForm)
		m.state = StateAddHabit
		return true, m.form.Init()

	case habitlist.DoneMsg:
		id := msg.Habit.ID
		return true, m.mutate("✓ "+msg.Habit.Title, func(ctx context.Context) (*tracker.Outcome, error) {
			return t.Complete(ctx, id, "")
		})

	case habitlist.SkipMsg:
		id := msg.Habit.ID
		return true, m.mutate("– "+msg.Habit.Title+" skipped", func(ctx context.Context) (*tracker.Outcome, error) {
			return t.Skip(ctx, id, "")
		})

	case habitlist.UndoMsg:
		id := msg.Habit.ID
		return true, m.mutate(msg.Habit.Title+" cleared", func(ctx context.Context) (*tracker.Outcome, error) {
			return t.Undo(ctx, id, "")
		})

	case habitlist.DeleteHabitMsg:
		m.habitToDelete = msg.Habit
		m.state = StateConfirmDelete
		return true, nil
	}
	return false, nil
}

func (m Model) updateAddHabit(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEsc {
		m.state = StateToday
		return m, nil
	}

	var cmds []tea.Cmd
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	cmds = append(cmds, cmd)

	switch m.form.State {
	case huh.StateCompleted:
		m.state = StateToday
		h, err := m.habitForm.Habit()
		if err != nil {
			m.err = err
			return m, nil
		}
		t := m.tracker
		cmds = append(cmds, m.mutate("Added "+h.Title, func(ctx context.Context) (*tracker.Outcome, error) {
			_, out, err := t.CreateHabit(ctx, h)
			return out, err
		}))
	case huh.StateAborted:
		m.state = StateToday
	}
	return m, tea.Batch(cmds...)
}

func (m Model) updateConfirmDelete(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Confirm):
		m.state = StateToday
		h := m.habitToDelete
		t := m.tracker
		return m, m.mutate("Deleted "+h.Title, func(ctx context.Context) (*tracker.Outcome, error) {
			return t.DeleteHabit(ctx, h.ID)
		})
	case key.Matches(keyMsg, m.keys.Cancel):
		m.state = StateToday
	}
	return m, nil
}

func (m *Model) applyMutation(msg mutatedMsg) {
	if msg.err != nil {
		m.err = msg.err
		m.status = ""
		return
	}
	m.err = nil
	if msg.out != nil {
		m.outcomes = append(m.outcomes, msg.out)
	}
	m.status = describeOutcome(msg.note, msg.out)
	m.reload()
}

func describeOutcome(note string, out *tracker.Outcome) string {
	parts := []string{note}
	if out == nil {
		return note
	}
	if out.PerfectDay {
		parts = append(parts, "perfect day!")
	}
	if out.FreezesGranted > 0 {
		parts = append(parts, fmt.Sprintf("+%d streak freeze", out.FreezesGranted))
	}
	for _, b := range out.Awarded {
		parts = append(parts, fmt.Sprintf("★ %s (+%d)", b.Name, b.Points))
	}
	return strings.Join(parts, "  ")
}
