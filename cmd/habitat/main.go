package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/habitat/internal/cli"
	"github.com/julianstephens/habitat/internal/config"
	"github.com/julianstephens/habitat/internal/constants"
	"github.com/julianstephens/habitat/internal/errors"
	"github.com/julianstephens/habitat/internal/logger"
	"github.com/julianstephens/habitat/internal/storage"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path." type:"string" default:"${config_path}"`
	Verbose bool   `short:"v" help:"Log debug output to stderr."`

	Init   cli.InitCmd   `cmd:"" help:"Initialize habitat storage and config."`
	Doctor cli.DoctorCmd `cmd:"" help:"Run health checks and diagnostics."`
	Login  cli.LoginCmd  `cmd:"" help:"Sign in and pull the account's data."`
	Logout cli.LogoutCmd `cmd:"" help:"Sign out and wipe local account data."`
	Sync   cli.SyncCmd   `cmd:"" help:"Sync with the remote store now."`
	Status cli.StatusCmd `cmd:"" help:"Show account and sync status."`

	Today cli.TodayCmd `cmd:"" help:"Show today's habits." default:"1"`
	Tui   cli.TuiCmd   `cmd:"" help:"Open the interactive habit board."`
	Done  cli.DoneCmd  `cmd:"" help:"Mark a habit as done."`
	Skip  cli.SkipCmd  `cmd:"" help:"Skip a habit for a day without breaking its streak."`
	Undo  cli.UndoCmd  `cmd:"" help:"Clear a habit's log for a day."`
	Habit cli.HabitCmd `cmd:"" help:"Manage habits."`

	Stats        cli.StatsCmd        `cmd:"" help:"Show level, points and streaks."`
	Badges       cli.BadgesCmd       `cmd:"" help:"List badges."`
	Freeze       cli.FreezeCmd       `cmd:"" help:"Spend a streak freeze on today."`
	Subscription cli.SubscriptionCmd `cmd:"" help:"Manage the subscription."`
	Keyring      cli.KeyringCmd      `cmd:"" help:"Manage the remote connection string in the OS keyring."`
	Backup       cli.BackupCmd       `cmd:"" help:"Create, list and restore local store snapshots."`
	Debug        cli.DebugCmd        `cmd:"" help:"Debug commands for troubleshooting."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Habit tracker with streaks, levels and offline-first sync"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":     constants.Version,
			"config_path": constants.DefaultConfigPath,
		},
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		errors.Fatal(err)
	}
	if CLI.Verbose {
		cfg.Debug = true
	}

	configDir, err := cli.ConfigDir(CLI.Config)
	if err != nil {
		errors.Fatal(err)
	}
	if err := logger.Init(logger.Config{Debug: cfg.Debug, ConfigDir: configDir}); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", errors.Warning(fmt.Errorf("file logging disabled: %w", err)))
	}

	dataPath, err := cfg.ResolvedDataPath()
	if err != nil {
		errors.Fatal(err)
	}
	local := storage.New(dataPath)

	command := kctx.Command()
	if command != "init" && command != "doctor" {
		if err := local.Load(); err != nil {
			errors.Fatal(err)
		}
	}

	rs, closer, err := cli.OpenRemote(context.Background(), cfg)
	if err != nil {
		// Every command works against the local store alone.
		logger.Warn("Remote store unavailable, working offline", "error", err)
		if command == "sync" || command == "login <account>" {
			fmt.Fprintf(os.Stderr, "%s\n", errors.Warning(err))
		}
	}

	appCtx, err := cli.NewContext(CLI.Config, cfg, local, rs, nil)
	if err != nil {
		errors.Fatal(err)
	}
	appCtx.SetRemoteCloser(closer)

	runErr := kctx.Run(appCtx)
	if err := appCtx.Close(os.Stderr); err != nil {
		logger.Warn("Failed to close stores", "error", err)
	}
	errors.Fatal(runErr)
}
