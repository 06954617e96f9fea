package overview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitat/internal/achievements"
	"github.com/julianstephens/habitat/internal/tracker"
)

const barWidth = 20

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(14)

	lockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	rarityColors = map[achievements.Rarity]lipgloss.Color{
		achievements.RarityCommon:    lipgloss.Color("252"),
		achievements.RarityRare:      lipgloss.Color("39"),
		achievements.RarityEpic:      lipgloss.Color("135"),
		achievements.RarityLegendary: lipgloss.Color("220"),
	}
)

// Model shows level, streak and badge progress in a scrollable pane.
type Model struct {
	viewport viewport.Model
	Stats    *tracker.Stats
	Badges   []tracker.BadgeStatus
}

func New(width, height int) Model {
	return Model{viewport: viewport.New(width, height)}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Stats == nil {
		return "No stats yet."
	}
	return m.viewport.View()
}

func (m *Model) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = height
	m.Render()
}

func (m *Model) SetData(stats tracker.Stats, badges []tracker.BadgeStatus) {
	m.Stats = &stats
	m.Badges = badges
	m.Render()
}

func bar(pct float64) string {
	pct = min(max(pct, 0), 100)
	filled := int(pct / 100 * barWidth)
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func row(label, value string) string {
	return labelStyle.Render(label) + " " + value + "\n"
}

func (m *Model) Render() {
	if m.Stats == nil {
		m.viewport.SetContent("No stats loaded.")
		return
	}
	s := m.Stats

	var b strings.Builder
	b.WriteString(headerStyle.Render("Progress") + "\n")
	b.WriteString(row("Level", fmt.Sprintf("%d  %s %d/%d", s.Level.Level, bar(s.Level.Percentage), s.Level.CurrentXP, s.Level.NextLevelXP)))
	b.WriteString(row("Points", fmt.Sprintf("%d", s.Points)))
	b.WriteString(row("Freezes", fmt.Sprintf("%d", s.StreakFreezes)))
	b.WriteString(row("Perfect days", fmt.Sprintf("%d (%d in a row)", s.PerfectDays, s.ConsecutivePerfectDays)))
	if s.PerfectWeek {
		b.WriteString(row("This week", "perfect"))
	}

	b.WriteString("\n" + headerStyle.Render("Streaks") + "\n")
	for _, h := range s.Habits {
		b.WriteString(row(h.Title, fmt.Sprintf("%d (best %d, %d total)", h.CurrentStreak, h.LongestStreak, h.TotalCompletions)))
	}

	unlocked := 0
	for _, st := range m.Badges {
		if st.Unlocked {
			unlocked++
		}
	}
	b.WriteString("\n" + headerStyle.Render(fmt.Sprintf("Badges %d/%d", unlocked, len(m.Badges))) + "\n")
	for _, st := range m.Badges {
		if !st.Unlocked {
			b.WriteString(lockedStyle.Render(fmt.Sprintf("  🔒 %s: %s", st.Badge.Name, st.Badge.Description)) + "\n")
			continue
		}
		style := lipgloss.NewStyle().Foreground(rarityColors[st.Badge.Rarity])
		b.WriteString(style.Render(fmt.Sprintf("  ★ %s (+%d)", st.Badge.Name, st.Badge.Points)) + " " +
			lockedStyle.Render(st.UnlockedAt.Format("2006-01-02")) + "\n")
	}
	m.viewport.SetContent(b.String())
}
