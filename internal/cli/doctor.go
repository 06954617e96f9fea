package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/habitat/internal/config"
	"github.com/julianstephens/habitat/internal/keyring"
	"github.com/julianstephens/habitat/internal/notifier"
	"github.com/julianstephens/habitat/internal/state"
	"github.com/julianstephens/habitat/internal/storage"
)

const doctorTimeout = 5 * time.Second

type DoctorCmd struct{}

type checkLevel int

const (
	levelFail checkLevel = iota
	levelWarn
)

type check struct {
	name  string
	level checkLevel
	// run returns a skipError when the check does not apply.
	run func(ctx *Context) error
}

type skipError string

func (e skipError) Error() string { return string(e) }

func (cmd *DoctorCmd) Run(ctx *Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	checks := []check{
		{"Local store reachable", levelFail, checkLocalReachable},
		{"Schema version", levelFail, checkSchemaVersion},
		{"Data validation", levelFail, checkValidation},
		{"Remote store", levelFail, checkRemote},
		{"Backups present", levelWarn, checkBackupsPresent},
		{"OS keyring", levelWarn, checkKeyring},
		{"Tray notifier", levelWarn, checkTray},
		{"Clock/timezone", levelFail, checkClockTimezone},
	}

	hasError := false
	for _, c := range checks {
		err := c.run(ctx)
		var skip skipError
		switch {
		case err == nil:
			fmt.Printf("✓ %s: OK\n", c.name)
		case errors.As(err, &skip):
			fmt.Printf("⊘ %s: SKIPPED (%s)\n", c.name, skip)
		case c.level == levelWarn:
			fmt.Printf("⚠ %s: WARNING\n", c.name)
			fmt.Printf("   %v\n", err)
		default:
			fmt.Printf("❌ %s: FAIL\n", c.name)
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		}
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	fmt.Println("All diagnostics passed!")
	return nil
}

func checkLocalReachable(ctx *Context) error {
	if err := ctx.Local.Load(); err != nil {
		return fmt.Errorf("failed to load local store: %w", err)
	}
	if s, ok := ctx.Local.(*storage.SQLiteStore); ok {
		pingCtx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
		defer cancel()
		if err := s.Ping(pingCtx); err != nil {
			return fmt.Errorf("failed to query database: %w", err)
		}
	}
	return nil
}

func checkSchemaVersion(ctx *Context) error {
	s, ok := ctx.Local.(*storage.SQLiteStore)
	if !ok {
		return skipError("JSON store has no schema")
	}
	vctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
	defer cancel()

	current, latest, err := s.SchemaVersion(vctx)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d", current, latest)
	}
	return nil
}

func checkValidation(ctx *Context) error {
	account, err := ctx.Account()
	if errors.Is(err, ErrNotLoggedIn) {
		return skipError("not logged in")
	}
	if err != nil {
		return err
	}

	// A fresh store reads only local data; doctor must not trigger a sync.
	st := state.New(ctx.Local)
	if err := st.Init(account); err != nil {
		return fmt.Errorf("failed to load account data: %w", err)
	}
	t, err := st.Snapshot()
	if err != nil {
		return err
	}

	var errs []error
	for _, h := range t.HabitList() {
		if err := h.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("habit %s: %w", shortID(h.ID), err))
		}
	}
	for key, l := range t.Logs {
		if _, ok := t.Habits[l.HabitID]; !ok {
			errs = append(errs, fmt.Errorf("log %s references a missing habit", key))
		}
		if key != l.Key() {
			errs = append(errs, fmt.Errorf("log %s is stored under the wrong key", key))
		}
	}
	if t.Gamification.StreakFreezes < 0 {
		errs = append(errs, fmt.Errorf("negative streak freeze count %d", t.Gamification.StreakFreezes))
	}
	return errors.Join(errs...)
}

func checkRemote(ctx *Context) error {
	if ctx.Config.Remote.Kind == config.RemoteNone {
		return skipError("remote.kind is none")
	}

	rctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
	defer cancel()

	rs := ctx.Remote
	if rs == nil {
		opened, closer, err := OpenRemote(rctx, ctx.Config)
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		if closer != nil {
			defer closer.Close()
		}
		rs = opened
	}

	account, err := ctx.Account()
	if err != nil {
		account = "doctor"
	}
	if _, err := rs.List(rctx, state.HabitsCollection(account)); err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	return nil
}

func checkBackupsPresent(ctx *Context) error {
	backups, err := ctx.backups().List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found - consider creating one with 'habitat backup create'")
	}
	return nil
}

func checkKeyring(ctx *Context) error {
	if !keyring.IsAvailable() {
		return keyring.ErrKeyringUnavailable
	}
	return nil
}

func checkTray(ctx *Context) error {
	if !ctx.Config.Notifications.NotificationsEnabled() {
		return skipError("notifications disabled")
	}
	if err := ctx.Notifier.Ping(); err != nil {
		if errors.Is(err, notifier.ErrTrayNotRunning) {
			return errors.New("tray app is not running; reminders will not be delivered")
		}
		return err
	}
	return nil
}

func checkClockTimezone(ctx *Context) error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	if ctx.Location == nil {
		return fmt.Errorf("timezone %q could not be loaded", ctx.Config.Timezone)
	}
	if name, offset := now.In(ctx.Location).Zone(); offset == 0 && name == "UTC" {
		fmt.Printf("   Note: timezone is UTC\n")
	}
	return nil
}
