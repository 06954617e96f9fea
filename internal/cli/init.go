package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/habitat/internal/utils"
)

type InitCmd struct{}

func (c *InitCmd) Run(ctx *Context) error {
	if err := ctx.Local.Init(); err != nil {
		return err
	}
	fmt.Printf("Initialized habitat storage at: %s\n", ctx.Local.GetPath())

	path, err := utils.ExpandHome(ctx.ConfigPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := ctx.Config.Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("Wrote default config to: %s\n", path)
	return nil
}
