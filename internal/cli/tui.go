package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/habitat/internal/tui"
)

type TuiCmd struct{}

func (cmd *TuiCmd) Run(ctx *Context) error {
	bg := context.Background()
	if err := ctx.Resume(bg); err != nil {
		return err
	}

	ctx.autoBackup(bg)

	p := tea.NewProgram(tui.NewModel(bg, ctx.Tracker), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("tui failed: %w", err)
	}

	if m, ok := final.(tui.Model); ok {
		for _, out := range m.Outcomes() {
			ctx.track(out.Pending)
		}
	}
	ctx.celebrate()
	return nil
}
