package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/habitat/internal/config"
	"github.com/julianstephens/habitat/internal/keyring"
	"github.com/julianstephens/habitat/internal/remote"
)

type KeyringCmd struct {
	Set    KeyringSetCmd    `cmd:"" help:"Store the remote connection string in the OS keyring."`
	Delete KeyringDeleteCmd `cmd:"" help:"Remove the stored connection string."`
}

// KeyringSetCmd stores the remote connection string in the OS keyring.
type KeyringSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string to store in keyring."`
}

func (cmd *KeyringSetCmd) Run(ctx *Context) error {
	if !strings.HasPrefix(cmd.ConnectionString, "postgres://") &&
		!strings.HasPrefix(cmd.ConnectionString, "postgresql://") &&
		!strings.Contains(cmd.ConnectionString, "host=") {
		return errors.New("connection string must be a valid PostgreSQL connection string")
	}

	if err := remote.ValidateDSN(cmd.ConnectionString); err != nil {
		if !errors.Is(err, remote.ErrEmbeddedCredentials) {
			return fmt.Errorf("invalid connection string: %w", err)
		}
		// The keyring is encrypted, so an inline password is allowed here.
		fmt.Println("⚠️  Warning: Connection string contains embedded credentials.")
		fmt.Println("   It will be stored as-is in the encrypted OS keyring.")
	}

	if err := keyring.SetRemoteDSN(cmd.ConnectionString); err != nil {
		return err
	}

	fmt.Println("✓ Connection string stored successfully in OS keyring")
	if ctx.Config.Remote.Kind != config.RemotePostgres {
		fmt.Println("  Set remote.kind to postgres in the config file to start syncing.")
	}
	return nil
}

type KeyringDeleteCmd struct{}

func (cmd *KeyringDeleteCmd) Run(ctx *Context) error {
	if err := keyring.DeleteRemoteDSN(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			fmt.Println("No connection string stored in keyring.")
			return nil
		}
		return err
	}
	fmt.Println("✓ Connection string removed from OS keyring")
	return nil
}
