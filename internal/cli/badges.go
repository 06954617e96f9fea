package cli

import (
	"context"
	"fmt"
)

type BadgesCmd struct {
	Locked bool `help:"Only show badges still to earn."`
}

func (cmd *BadgesCmd) Run(ctx *Context) error {
	if err := ctx.Resume(context.Background()); err != nil {
		return err
	}

	badges, err := ctx.Tracker.Badges()
	if err != nil {
		return err
	}

	unlocked := 0
	for _, b := range badges {
		if b.Unlocked {
			unlocked++
		}
	}
	fmt.Println(titleStyle.Render(fmt.Sprintf("Badges %d/%d", unlocked, len(badges))))

	for _, b := range badges {
		if cmd.Locked && b.Unlocked {
			continue
		}
		style := rarityStyle(b.Badge.Rarity)
		mark := dimStyle.Render("○")
		name := dimStyle.Render(b.Badge.Name)
		if b.Unlocked {
			mark = doneStyle.Render("✓")
			name = style.Render(b.Badge.Name)
		}
		fmt.Printf("%s %-22s %s\n", mark, name, dimStyle.Render(fmt.Sprintf("%s, %d pts", b.Badge.Rarity, b.Badge.Points)))
		fmt.Printf("    %s", b.Badge.Description)
		if b.Unlocked {
			fmt.Printf(" (%s)", b.UnlockedAt.In(ctx.Location).Format("2006-01-02"))
		}
		fmt.Println()
	}
	return nil
}
