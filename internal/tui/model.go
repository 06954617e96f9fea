package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/tracker"
	"github.com/julianstephens/habitat/internal/tui/components/habitlist"
	"github.com/julianstephens/habitat/internal/tui/components/overview"
)

// Tracker is the subset of tracker.Service the TUI drives.
type Tracker interface {
	Today() (tracker.TodayView, error)
	Stats() (tracker.Stats, error)
	Badges() ([]tracker.BadgeStatus, error)
	CreateHabit(ctx context.Context, h models.Habit) (models.Habit, *tracker.Outcome, error)
	DeleteHabit(ctx context.Context, id string) (*tracker.Outcome, error)
	Complete(ctx context.Context, habitID, day string) (*tracker.Outcome, error)
	Skip(ctx context.Context, habitID, day string) (*tracker.Outcome, error)
	Undo(ctx context.Context, habitID, day string) (*tracker.Outcome, error)
	UseStreakFreeze(ctx context.Context) (bool, *tracker.Outcome, error)
}

type SessionState int

const (
	StateToday SessionState = iota
	StateOverview
	StateAddHabit
	StateConfirmDelete
)

// tabCount is the number of states reachable with tab.
const tabCount = 2

type Model struct {
	ctx           context.Context
	tracker       Tracker
	state         SessionState
	keys          KeyMap
	help          help.Model
	habits        habitlist.Model
	overview      overview.Model
	form          *huh.Form
	habitForm     *HabitFormModel
	view          tracker.TodayView
	habitToDelete models.Habit
	outcomes      []*tracker.Outcome
	status        string
	err           error
	quitting      bool
	width         int
	height        int
}

func NewModel(ctx context.Context, t Tracker) Model {
	m := Model{
		ctx:      ctx,
		tracker:  t,
		state:    StateToday,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		habits:   habitlist.New(nil, 0, 0),
		overview: overview.New(0, 0),
	}
	m.reload()
	return m
}

// Outcomes returns every mutation outcome produced during the session so
// the caller can wait for their remote writes.
func (m Model) Outcomes() []*tracker.Outcome {
	return m.outcomes
}

// reload refreshes all panes from the tracker.
func (m *Model) reload() {
	view, err := m.tracker.Today()
	if err != nil {
		m.err = err
		return
	}
	m.view = view
	m.habits.SetItems(view.Items)

	stats, err := m.tracker.Stats()
	if err != nil {
		m.err = err
		return
	}
	badges, err := m.tracker.Badges()
	if err != nil {
		m.err = err
		return
	}
	m.overview.SetData(stats, badges)
}

func (m Model) ShortHelp() []key.Binding {
	keys := []key.Binding{m.keys.Tab, m.keys.Quit, m.keys.Help}
	switch m.state {
	case StateToday:
		hk := m.habits.Keys()
		keys = append(keys, hk.Done, hk.Skip, hk.Undo, hk.Add)
	case StateConfirmDelete:
		keys = []key.Binding{m.keys.Confirm, m.keys.Cancel}
	}
	return keys
}

func (m Model) FullHelp() [][]key.Binding {
	global := []key.Binding{m.keys.Tab, m.keys.ShiftTab, m.keys.Quit, m.keys.Help, m.keys.Refresh}
	navigation := []key.Binding{m.keys.Up, m.keys.Down}

	var actions []key.Binding
	if m.state == StateToday {
		hk := m.habits.Keys()
		actions = []key.Binding{hk.Done, hk.Skip, hk.Undo, hk.Add, hk.Delete, m.keys.Freeze}
	}
	return [][]key.Binding{global, navigation, actions}
}

func (m Model) Init() tea.Cmd {
	return nil
}
