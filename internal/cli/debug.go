package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/habitat/internal/logger"
	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/state"
)

type DebugCmd struct {
	Paths     *DebugPathsCmd     `cmd:"" help:"Show config, data and log paths."`
	DumpHabit *DebugDumpHabitCmd `cmd:"" help:"Dump a habit and its logs as JSON."`
	DumpSync  *DebugDumpSyncCmd  `cmd:"" help:"Dump sync bookkeeping as JSON."`
}

func printJSON(v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(jsonBytes))
	return nil
}

type DebugPathsCmd struct{}

func (cmd *DebugPathsCmd) Run(ctx *Context) error {
	configDir, err := ConfigDir(ctx.ConfigPath)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{
		"config": ctx.ConfigPath,
		"data":   ctx.Local.GetPath(),
		"log":    logger.Path(configDir),
	})
}

type DebugDumpHabitCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix or title."`
}

func (cmd *DebugDumpHabitCmd) Run(ctx *Context) error {
	account, err := ctx.Account()
	if err != nil {
		return err
	}
	// Read local state only; debugging must not sync.
	if err := ctx.State.Init(account); err != nil {
		return err
	}
	t, err := ctx.State.Snapshot()
	if err != nil {
		return err
	}

	h, err := findHabit(t.HabitList(), cmd.Habit)
	if err != nil {
		return err
	}
	return printJSON(struct {
		Habit models.Habit      `json:"habit"`
		Logs  []models.HabitLog `json:"logs"`
	}{h, t.LogsFor(h.ID)})
}

type DebugDumpSyncCmd struct{}

type dirtyDump struct {
	Path string          `json:"path"`
	Op   json.RawMessage `json:"op"`
}

func (cmd *DebugDumpSyncCmd) Run(ctx *Context) error {
	account, err := ctx.Account()
	if err != nil {
		return err
	}

	prefix := state.SyncPrefix(account)
	entries, err := ctx.Local.List(prefix)
	if err != nil {
		return err
	}

	out := struct {
		Account      string          `json:"account"`
		LastSyncedAt *time.Time      `json:"last_synced_at,omitempty"`
		Dirty        []dirtyDump     `json:"dirty"`
		Meta         json.RawMessage `json:"meta,omitempty"`
	}{Account: account, Dirty: []dirtyDump{}}

	for key, value := range entries {
		rest := strings.TrimPrefix(key, prefix)
		switch {
		case rest == "meta":
			out.Meta = value
			var meta struct {
				LastSyncedAt time.Time `json:"last_synced_at"`
			}
			if json.Unmarshal(value, &meta) == nil && !meta.LastSyncedAt.IsZero() {
				out.LastSyncedAt = &meta.LastSyncedAt
			}
		case strings.HasPrefix(rest, "dirty/"):
			out.Dirty = append(out.Dirty, dirtyDump{Path: strings.TrimPrefix(rest, "dirty/"), Op: value})
		}
	}
	sort.Slice(out.Dirty, func(i, j int) bool { return out.Dirty[i].Path < out.Dirty[j].Path })
	return printJSON(out)
}
