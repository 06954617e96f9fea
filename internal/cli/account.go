package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/habitat/internal/logger"
	"github.com/julianstephens/habitat/internal/reminders"
	"github.com/julianstephens/habitat/internal/storage"
	"github.com/julianstephens/habitat/internal/syncer"
)

type LoginCmd struct {
	Account string `arg:"" help:"Account id to sign in as."`
}

func (cmd *LoginCmd) Run(ctx *Context) error {
	account := strings.TrimSpace(cmd.Account)
	if account == "" || strings.ContainsAny(account, "/ ") {
		return fmt.Errorf("invalid account id %q", cmd.Account)
	}

	current, err := ctx.Account()
	switch {
	case err == nil && current != account:
		return fmt.Errorf("already logged in as %q, run 'habitat logout' first", current)
	case err != nil && !errors.Is(err, ErrNotLoggedIn):
		return err
	}

	bg := context.Background()
	if err := ctx.Sync.Login(bg, account); err != nil {
		// The account is loaded either way; the next command retries.
		logger.Warn("Initial sync failed", "account", account, "error", err)
		fmt.Println("Could not reach the remote store; working offline.")
	}
	if err := ctx.Local.Put(sessionKey, []byte(account)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if err := ctx.Tracker.SyncReminders(bg); err != nil {
		logger.Warn("Failed to restore reminders", "error", err)
	}

	habits, err := ctx.Tracker.Habits()
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (%d habits)\n", account, len(habits))
	ctx.celebrate()
	return nil
}

type LogoutCmd struct{}

func (cmd *LogoutCmd) Run(ctx *Context) error {
	bg := context.Background()
	account, err := ctx.Account()
	if err != nil {
		return err
	}
	if err := ctx.Sync.Resume(bg, account); err != nil {
		logger.Warn("Sync before logout failed", "error", err)
	}

	flushCtx, cancel := context.WithTimeout(bg, flushTimeout)
	defer cancel()
	if err := ctx.Sync.Flush(flushCtx); err != nil {
		logger.Warn("Gave up waiting for queued writes", "error", err)
	}
	if n := ctx.Sync.Dirty(); n > 0 {
		fmt.Printf("Warning: %d unsynced change(s) will be discarded\n", n)
	}

	habits, err := ctx.Tracker.Habits()
	if err != nil {
		return err
	}
	if sched := ctx.scheduler(); sched != nil {
		for _, h := range habits {
			if err := reminders.Cancel(bg, sched, h.ID); err != nil {
				logger.Debug("Failed to cancel reminders", "habit", h.ID, "error", err)
			}
		}
	}

	if err := ctx.Sync.Logout(); err != nil {
		return err
	}
	if err := ctx.Local.Delete(sessionKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	fmt.Printf("Logged out of %s\n", account)
	return nil
}

func (c *Context) scheduler() reminders.Scheduler {
	if !c.Config.Notifications.NotificationsEnabled() {
		return nil
	}
	return c.Notifier
}

type SyncCmd struct{}

func (cmd *SyncCmd) Run(ctx *Context) error {
	bg := context.Background()
	account, err := ctx.Account()
	if err != nil {
		return err
	}
	if err := ctx.Sync.Resume(bg, account); err != nil && !errors.Is(err, syncer.ErrOffline) {
		logger.Debug("Resume sync failed, retrying", "error", err)
	}

	if err := ctx.Sync.Sync(bg); err != nil {
		if errors.Is(err, syncer.ErrOffline) {
			return errors.New("no remote store configured; set remote.kind in the config file")
		}
		return err
	}

	p, err := ctx.Subs.Refresh(bg)
	if err != nil {
		return err
	}
	ctx.track(p)

	if err := ctx.Tracker.SyncReminders(bg); err != nil {
		logger.Warn("Failed to refresh reminders", "error", err)
	}

	fmt.Printf("Synced at %s", ctx.Sync.LastSyncedAt().In(ctx.Location).Format(time.Kitchen))
	if n := ctx.Sync.Dirty(); n > 0 {
		fmt.Printf(" (%d change(s) still sending)", n)
	}
	fmt.Println()
	ctx.celebrate()
	return nil
}

type StatusCmd struct{}

func (cmd *StatusCmd) Run(ctx *Context) error {
	account, err := ctx.Account()
	if errors.Is(err, ErrNotLoggedIn) {
		fmt.Println("Not logged in.")
		return nil
	}
	if err != nil {
		return err
	}
	if err := ctx.Resume(context.Background()); err != nil {
		return err
	}

	fmt.Printf("Account:     %s\n", account)
	fmt.Printf("Remote:      %s\n", ctx.Config.Remote.Kind)
	if last := ctx.Sync.LastSyncedAt(); last.IsZero() {
		fmt.Println("Last sync:   never")
	} else {
		fmt.Printf("Last sync:   %s\n", last.In(ctx.Location).Format(time.DateTime))
	}
	fmt.Printf("Unsynced:    %d\n", ctx.Sync.Dirty())
	return nil
}
