package cli

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/habitat/internal/config"
	"github.com/julianstephens/habitat/internal/remote"
	"github.com/julianstephens/habitat/internal/storage"
)

var testNow = time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

func setupTestContext(t *testing.T) *Context {
	t.Helper()
	tempDir := t.TempDir()

	store := storage.NewSQLiteStore(filepath.Join(tempDir, "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	off := false
	cfg := config.Default()
	cfg.Timezone = "UTC"
	cfg.Remote.Kind = config.RemoteMemory
	cfg.Notifications.Enabled = &off

	ctx, err := NewContext(filepath.Join(tempDir, "config.yaml"), cfg, store, remote.NewMemoryStore(), func() time.Time { return testNow })
	if err != nil {
		t.Fatalf("failed to build context: %v", err)
	}
	t.Cleanup(func() { ctx.Close(io.Discard) })
	return ctx
}

func login(t *testing.T, ctx *Context, account string) {
	t.Helper()
	if err := (&LoginCmd{Account: account}).Run(ctx); err != nil {
		t.Fatalf("login failed: %v", err)
	}
}

func TestDebugPathsCmd(t *testing.T) {
	ctx := setupTestContext(t)

	cmd := &DebugPathsCmd{}
	if err := cmd.Run(ctx); err != nil {
		t.Errorf("debug paths command failed: %v", err)
	}
}

func TestDebugDumpHabitCmd_Success(t *testing.T) {
	ctx := setupTestContext(t)
	login(t, ctx, "alice")

	if err := (&HabitAddCmd{Title: "Read"}).Run(ctx); err != nil {
		t.Fatalf("failed to add test habit: %v", err)
	}
	if err := (&DoneCmd{Habit: "read"}).Run(ctx); err != nil {
		t.Fatalf("failed to complete test habit: %v", err)
	}

	cmd := &DebugDumpHabitCmd{Habit: "Read"}
	if err := cmd.Run(ctx); err != nil {
		t.Errorf("debug dump-habit command failed: %v", err)
	}
}

func TestDebugDumpHabitCmd_NotFound(t *testing.T) {
	ctx := setupTestContext(t)
	login(t, ctx, "alice")

	cmd := &DebugDumpHabitCmd{Habit: "nonexistent"}
	if err := cmd.Run(ctx); err == nil {
		t.Error("expected error for non-existent habit, got nil")
	}
}

func TestDebugCmds_RequireLogin(t *testing.T) {
	ctx := setupTestContext(t)

	if err := (&DebugDumpSyncCmd{}).Run(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("dump-sync without login = %v, want ErrNotLoggedIn", err)
	}
	if err := (&DebugDumpHabitCmd{Habit: "x"}).Run(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("dump-habit without login = %v, want ErrNotLoggedIn", err)
	}
}

func TestDebugDumpSyncCmd(t *testing.T) {
	ctx := setupTestContext(t)
	login(t, ctx, "alice")

	if err := (&DebugDumpSyncCmd{}).Run(ctx); err != nil {
		t.Errorf("debug dump-sync command failed: %v", err)
	}
}
