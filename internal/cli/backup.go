package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitat/internal/backup"
	"github.com/julianstephens/habitat/internal/constants"
	"github.com/julianstephens/habitat/internal/logger"
)

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Snapshot the local store."`
	List    BackupListCmd    `cmd:"" help:"List local store snapshots."`
	Restore BackupRestoreCmd `cmd:"" help:"Replace the local store with a snapshot."`
}

func (c *Context) backups() *backup.Manager {
	return backup.NewManager(c.Local.GetPath())
}

// autoBackup takes a snapshot when the newest one is older than a day.
// Failures are logged and never block the caller.
func (c *Context) autoBackup(ctx context.Context) {
	info, created, err := c.backups().AutoBackup(ctx, constants.AutoBackupMinAge)
	if err != nil {
		logger.Warn("Automatic backup failed", "error", err)
		return
	}
	if created {
		logger.Debug("Automatic backup created", "path", info.Path)
	}
}

type BackupCreateCmd struct{}

func (cmd *BackupCreateCmd) Run(ctx *Context) error {
	info, err := ctx.backups().Create(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("✓ Backup created: %s\n", info.Name())
	return nil
}

type BackupListCmd struct{}

func (cmd *BackupListCmd) Run(ctx *Context) error {
	mgr := ctx.backups()
	backups, err := mgr.List()
	if err != nil {
		return err
	}

	if len(backups) == 0 {
		fmt.Println("No backups found.")
		fmt.Printf("Backups are stored in: %s\n", mgr.Dir())
		return nil
	}

	fmt.Printf("Available backups (%d total, keeping most recent %d):\n\n", len(backups), constants.MaxBackups)
	for _, b := range backups {
		fmt.Printf("  %s  %s  %s\n", b.Name(), b.CreatedAt.Format("2006-01-02 15:04:05"), dimStyle.Render(formatBytes(b.Size)))
	}
	fmt.Printf("\nBackup directory: %s\n", mgr.Dir())
	return nil
}

type BackupRestoreCmd struct {
	Backup string `arg:"" help:"Path or file name of the backup to restore."`
	Yes    bool   `short:"y" help:"Restore without asking for confirmation."`
}

func (cmd *BackupRestoreCmd) Run(ctx *Context) error {
	mgr := ctx.backups()
	path, err := mgr.Resolve(cmd.Backup)
	if err != nil {
		return err
	}

	if !cmd.Yes {
		confirmed := false
		prompt := huh.NewConfirm().
			Title(fmt.Sprintf("Replace the local store with %s?", filepath.Base(path))).
			Description("The current store is backed up first. Edits not yet synced since that snapshot are lost.").
			Affirmative("Restore").
			Negative("Cancel").
			Value(&confirmed)
		if err := prompt.Run(); err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Restore cancelled.")
			return nil
		}
	}

	if err := ctx.Local.Close(); err != nil {
		logger.Warn("Failed to close local store before restore", "error", err)
	}

	safety, err := mgr.Restore(context.Background(), path)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	if safety != nil {
		fmt.Printf("Created backup of current store: %s\n", safety.Name())
	}
	fmt.Println("✓ Local store restored.")
	fmt.Println("Run 'habitat sync' to merge it with the remote.")
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
