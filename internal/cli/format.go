package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/unicode/norm"

	"github.com/julianstephens/habitat/internal/achievements"
	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/schedule"
)

const barWidth = 20

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	skipStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	barFill    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	barEmpty   = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))

	rarityStyles = map[achievements.Rarity]lipgloss.Style{
		achievements.RarityCommon:    lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		achievements.RarityRare:      lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		achievements.RarityEpic:      lipgloss.NewStyle().Foreground(lipgloss.Color("135")),
		achievements.RarityLegendary: lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true),
	}

	numbers = message.NewPrinter(language.English)
)

// progressBar renders pct (0-100) as a fixed-width bar.
func progressBar(pct float64) string {
	pct = min(max(pct, 0), 100)
	filled := int(pct / 100 * barWidth)
	return barFill.Render(strings.Repeat("█", filled)) + barEmpty.Render(strings.Repeat("░", barWidth-filled))
}

// cleanTitle trims a user-supplied title and puts it in NFC so titles typed
// on different keyboards compare equal.
func cleanTitle(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func formatPoints(n int) string {
	return numbers.Sprintf("%d", n)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func habitLabel(h models.Habit) string {
	if h.Icon != "" {
		return h.Icon + " " + h.Title
	}
	return h.Title
}

func statusMark(status models.LogStatus, due bool) string {
	switch status {
	case models.LogCompleted:
		return doneStyle.Render("✓")
	case models.LogSkipped:
		return skipStyle.Render("–")
	}
	if !due {
		return dimStyle.Render("·")
	}
	return "○"
}

func describeHabit(h models.Habit) string {
	desc := schedule.Describe(h.Frequency.Get())
	if h.Reminder.Enabled && len(h.Reminder.Times) > 0 {
		desc += fmt.Sprintf(", reminds at %s", strings.Join(h.Reminder.Times, ", "))
	}
	return desc
}

func rarityStyle(r achievements.Rarity) lipgloss.Style {
	if s, ok := rarityStyles[r]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
