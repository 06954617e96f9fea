package cli

import (
	"context"
	"fmt"

	"github.com/julianstephens/habitat/internal/achievements"
	"github.com/julianstephens/habitat/internal/logger"
	"github.com/julianstephens/habitat/internal/tracker"
)

type DoneCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix or title."`
	Date  string `help:"Day to log (YYYY-MM-DD). Defaults to today."`
}

func (cmd *DoneCmd) Run(ctx *Context) error {
	bg := context.Background()
	if err := ctx.Resume(bg); err != nil {
		return err
	}
	h, err := ctx.resolveHabit(cmd.Habit)
	if err != nil {
		return err
	}

	out, err := ctx.Tracker.Complete(bg, h.ID, cmd.Date)
	if err != nil {
		return err
	}

	updated, err := ctx.Tracker.Habit(h.ID)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s (streak %d)\n", doneStyle.Render("✓"), habitLabel(updated), updated.CurrentStreak)
	ctx.report(out)
	return nil
}

type SkipCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix or title."`
	Date  string `help:"Day to skip (YYYY-MM-DD). Defaults to today."`
}

func (cmd *SkipCmd) Run(ctx *Context) error {
	bg := context.Background()
	if err := ctx.Resume(bg); err != nil {
		return err
	}
	h, err := ctx.resolveHabit(cmd.Habit)
	if err != nil {
		return err
	}

	out, err := ctx.Tracker.Skip(bg, h.ID, cmd.Date)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s skipped\n", skipStyle.Render("–"), habitLabel(h))
	ctx.report(out)
	return nil
}

type UndoCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix or title."`
	Date  string `help:"Day to clear (YYYY-MM-DD). Defaults to today."`
}

func (cmd *UndoCmd) Run(ctx *Context) error {
	bg := context.Background()
	if err := ctx.Resume(bg); err != nil {
		return err
	}
	h, err := ctx.resolveHabit(cmd.Habit)
	if err != nil {
		return err
	}

	out, err := ctx.Tracker.Undo(bg, h.ID, cmd.Date)
	if err != nil {
		return err
	}
	fmt.Printf("Cleared log for %s\n", habitLabel(h))
	ctx.report(out)
	return nil
}

type FreezeCmd struct{}

func (cmd *FreezeCmd) Run(ctx *Context) error {
	bg := context.Background()
	if err := ctx.Resume(bg); err != nil {
		return err
	}

	used, out, err := ctx.Tracker.UseStreakFreeze(bg)
	if err != nil {
		return err
	}
	stats, err := ctx.Tracker.Stats()
	if err != nil {
		return err
	}
	if !used {
		if stats.StreakFreezes == 0 {
			fmt.Println("No streak freezes left. Earn one every 7 days of streak.")
		} else {
			fmt.Println("A streak freeze is already covering today.")
		}
		return nil
	}

	fmt.Printf("❄ Streak freeze used for today (%d left)\n", stats.StreakFreezes)
	ctx.report(out)
	return nil
}

// report prints what a mutation earned and queues its write for Close.
func (c *Context) report(out *tracker.Outcome) {
	if out == nil {
		return
	}
	c.track(out.Pending)

	if out.PerfectDay {
		fmt.Println(doneStyle.Render("★ Perfect day!"))
	}
	if out.FreezesGranted > 0 {
		fmt.Printf("❄ Streak milestone: earned %d streak freeze(s)\n", out.FreezesGranted)
	}
	c.celebrate()
}

// celebrate shows every unlocked badge no device has celebrated yet,
// including ones that arrived through sync, then records that it was shown.
func (c *Context) celebrate() {
	badges, err := c.Tracker.Unannounced()
	if err != nil {
		logger.Warn("Failed to list new badges", "error", err)
		return
	}
	if len(badges) == 0 {
		return
	}

	ids := make([]string, 0, len(badges))
	for _, b := range badges {
		line := fmt.Sprintf("🏅 Badge unlocked: %s (+%d points)", b.Name, b.Points)
		fmt.Println(rarityStyle(b.Rarity).Render(line))
		c.notifyBadge(b)
		ids = append(ids, b.ID)
	}

	out, err := c.Tracker.MarkAnnounced(context.Background(), ids)
	if err != nil {
		logger.Warn("Failed to record shown badges", "error", err)
		return
	}
	c.track(out.Pending)
}

func (c *Context) notifyBadge(b achievements.Badge) {
	if !c.Config.Notifications.NotificationsEnabled() {
		return
	}
	if err := c.Notifier.Notify(fmt.Sprintf("Badge unlocked: %s", b.Name)); err != nil {
		logger.Debug("Badge notification not shown", "badge", b.ID, "error", err)
	}
}
