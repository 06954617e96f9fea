package habitlist

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/schedule"
	"github.com/julianstephens/habitat/internal/tracker"
)

type AddHabitMsg struct{}

type DoneMsg struct {
	Habit models.Habit
}

type SkipMsg struct {
	Habit models.Habit
}

type UndoMsg struct {
	Habit models.Habit
}

type DeleteHabitMsg struct {
	Habit models.Habit
}

type Item struct {
	tracker.TodayItem
}

func (i Item) Title() string {
	mark := "○"
	switch i.Status {
	case models.LogCompleted:
		mark = "✓"
	case models.LogSkipped:
		mark = "–"
	default:
		if !i.Due {
			mark = "·"
		}
	}
	title := i.Habit.Title
	if i.Habit.Icon != "" {
		title = i.Habit.Icon + " " + title
	}
	return mark + " " + title
}

func (i Item) Description() string {
	desc := schedule.Describe(i.Habit.Frequency.Get())
	if i.Habit.CurrentStreak > 0 {
		desc += fmt.Sprintf(" | 🔥 %d", i.Habit.CurrentStreak)
	}
	if i.Quota != nil {
		desc += " | " + i.Quota.String()
		if i.Quota.Met() {
			desc += " ✓"
		}
	}
	if !i.Due && i.Status == "" {
		desc += " | not due today"
	}
	return desc
}

func (i Item) FilterValue() string { return i.Habit.Title }

type KeyMap struct {
	Done   key.Binding
	Skip   key.Binding
	Undo   key.Binding
	Add    key.Binding
	Delete key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Done: key.NewBinding(
			key.WithKeys("x", " "),
			key.WithHelp("x/space", "done"),
		),
		Skip: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "skip"),
		),
		Undo: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "undo"),
		),
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
	}
}

type Model struct {
	list list.Model
	keys KeyMap
}

func New(items []tracker.TodayItem, width, height int) Model {
	l := list.New(toItems(items), list.NewDefaultDelegate(), width, height)
	l.Title = "Today"
	l.SetShowTitle(false)
	l.SetShowHelp(false) // help is rendered by the parent model

	keys := DefaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Done, keys.Skip, keys.Undo}
	}
	l.AdditionalFullHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Done, keys.Skip, keys.Undo, keys.Add, keys.Delete}
	}

	return Model{list: l, keys: keys}
}

func toItems(items []tracker.TodayItem) []list.Item {
	out := make([]list.Item, len(items))
	for i, it := range items {
		out[i] = Item{TodayItem: it}
	}
	return out
}

// SetItems replaces the list contents, keeping the cursor where it was.
func (m *Model) SetItems(items []tracker.TodayItem) {
	idx := m.list.Index()
	m.list.SetItems(toItems(items))
	if idx < len(items) {
		m.list.Select(idx)
	}
}

func (m Model) Keys() KeyMap {
	return m.keys
}

// Filtering reports whether the user is typing a filter, in which case
// keystrokes belong to the list.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

func (m Model) Selected() (tracker.TodayItem, bool) {
	i, ok := m.list.SelectedItem().(Item)
	return i.TodayItem, ok
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Filtering() {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Add):
			return m, func() tea.Msg { return AddHabitMsg{} }
		case key.Matches(msg, m.keys.Done):
			if i, ok := m.Selected(); ok {
				return m, func() tea.Msg { return DoneMsg{Habit: i.Habit} }
			}
		case key.Matches(msg, m.keys.Skip):
			if i, ok := m.Selected(); ok {
				return m, func() tea.Msg { return SkipMsg{Habit: i.Habit} }
			}
		case key.Matches(msg, m.keys.Undo):
			if i, ok := m.Selected(); ok {
				return m, func() tea.Msg { return UndoMsg{Habit: i.Habit} }
			}
		case key.Matches(msg, m.keys.Delete):
			if i, ok := m.Selected(); ok {
				return m, func() tea.Msg { return DeleteHabitMsg{Habit: i.Habit} }
			}
		}
	}

	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 && !m.Filtering() {
		return "\n  No habits yet.\n  Press 'a' to add one."
	}
	return m.list.View()
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}
