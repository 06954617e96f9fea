package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/habitat/internal/storage"
)

func setupStore(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	s := storage.New(path)
	if err := s.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	if err := s.Put("habits/alice/h1", []byte(`{"title":"Read"}`)); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
	return path
}

func readKey(t *testing.T, path, key string) string {
	t.Helper()
	s := storage.New(path)
	if err := s.Load(); err != nil {
		t.Fatalf("failed to load store: %v", err)
	}
	defer s.Close()
	b, err := s.Get(key)
	if err != nil {
		t.Fatalf("failed to read %s: %v", key, err)
	}
	return string(b)
}

func writeKey(t *testing.T, path, key, value string) {
	t.Helper()
	s := storage.New(path)
	if err := s.Load(); err != nil {
		t.Fatalf("failed to load store: %v", err)
	}
	defer s.Close()
	if err := s.Put(key, []byte(value)); err != nil {
		t.Fatalf("failed to write %s: %v", key, err)
	}
}

func newManager(path string, start time.Time) (*Manager, *time.Time) {
	now := start
	m := NewManager(path)
	m.now = func() time.Time { return now }
	return m, &now
}

var start = time.Date(2026, 1, 7, 9, 30, 0, 0, time.Local)

func TestCreate(t *testing.T) {
	path := setupStore(t, "habitat.db")
	mgr, _ := newManager(path, start)

	info, err := mgr.Create(context.Background())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if want := "habitat-20260107-093000.db"; info.Name() != want {
		t.Errorf("name = %s, want %s", info.Name(), want)
	}
	if filepath.Dir(info.Path) != mgr.Dir() {
		t.Errorf("backup written to %s, want %s", filepath.Dir(info.Path), mgr.Dir())
	}
	if info.Size == 0 {
		t.Error("backup is empty")
	}
	if got := readKey(t, info.Path, "habits/alice/h1"); got != `{"title":"Read"}` {
		t.Errorf("backup content = %s", got)
	}
}

func TestCreate_MissingStore(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "missing.db"))
	if _, err := mgr.Create(context.Background()); !errors.Is(err, ErrNoSource) {
		t.Errorf("Create() error = %v, want ErrNoSource", err)
	}
}

func TestCreate_UniqueNames(t *testing.T) {
	path := setupStore(t, "habitat.db")
	mgr, _ := newManager(path, start)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		info, err := mgr.Create(context.Background())
		if err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
		if seen[info.Path] {
			t.Fatalf("duplicate backup path %s", info.Path)
		}
		seen[info.Path] = true
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != 3 {
		t.Fatalf("List() returned %d backups, want 3", len(backups))
	}
	if want := "habitat-20260107-093000-2.db"; backups[0].Name() != want {
		t.Errorf("newest = %s, want %s", backups[0].Name(), want)
	}
}

func TestPrune(t *testing.T) {
	path := setupStore(t, "habitat.db")
	mgr, now := newManager(path, start)
	mgr.keep = 3

	for i := 0; i < 5; i++ {
		if _, err := mgr.Create(context.Background()); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
		*now = now.Add(time.Hour)
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != 3 {
		t.Fatalf("kept %d backups, want 3", len(backups))
	}
	if !backups[0].CreatedAt.Equal(start.Add(4 * time.Hour)) {
		t.Errorf("newest backup at %v, want %v", backups[0].CreatedAt, start.Add(4*time.Hour))
	}
	if !backups[2].CreatedAt.Equal(start.Add(2 * time.Hour)) {
		t.Errorf("oldest kept backup at %v, want %v", backups[2].CreatedAt, start.Add(2*time.Hour))
	}
}

func TestList_IgnoresForeignFiles(t *testing.T) {
	path := setupStore(t, "habitat.db")
	mgr, _ := newManager(path, start)
	if _, err := mgr.Create(context.Background()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, name := range []string{"notes.txt", "habitat-latest.db", "habitat-20260107-093000-x.db", "backup-20260107-0930.db"} {
		if err := os.WriteFile(filepath.Join(mgr.Dir(), name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != 1 {
		t.Errorf("List() returned %d backups, want 1", len(backups))
	}
}

func TestList_NoDirectory(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "habitat.db"))
	backups, err := mgr.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("List() = %v, want empty", backups)
	}
}

func TestRestore(t *testing.T) {
	path := setupStore(t, "habitat.db")
	mgr, now := newManager(path, start)
	ctx := context.Background()

	snap, err := mgr.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	writeKey(t, path, "habits/alice/h1", `{"title":"Read more"}`)
	*now = now.Add(time.Minute)

	safety, err := mgr.Restore(ctx, snap.Path)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if got := readKey(t, path, "habits/alice/h1"); got != `{"title":"Read"}` {
		t.Errorf("restored content = %s", got)
	}

	if safety == nil {
		t.Fatal("expected a snapshot of the replaced store")
	}
	if got := readKey(t, safety.Path, "habits/alice/h1"); got != `{"title":"Read more"}` {
		t.Errorf("pre-restore snapshot content = %s", got)
	}
	if _, err := os.Stat(path + ".restore.tmp"); !os.IsNotExist(err) {
		t.Error("temporary restore file left behind")
	}
}

func TestRestore_RejectsInvalidFile(t *testing.T) {
	path := setupStore(t, "habitat.db")
	mgr, _ := newManager(path, start)

	bogus := filepath.Join(t.TempDir(), "bogus.db")
	if err := os.WriteFile(bogus, []byte("this is not a database"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Restore(context.Background(), bogus); err == nil {
		t.Error("expected error restoring an invalid file")
	}
	if got := readKey(t, path, "habits/alice/h1"); got != `{"title":"Read"}` {
		t.Errorf("store was modified: %s", got)
	}
}

func TestAutoBackup(t *testing.T) {
	path := setupStore(t, "habitat.db")
	mgr, now := newManager(path, start)
	ctx := context.Background()

	if _, created, err := mgr.AutoBackup(ctx, 24*time.Hour); err != nil || !created {
		t.Fatalf("first AutoBackup = %v, %v; want a new backup", created, err)
	}

	*now = now.Add(time.Hour)
	if _, created, err := mgr.AutoBackup(ctx, 24*time.Hour); err != nil || created {
		t.Fatalf("AutoBackup within min age = %v, %v; want none", created, err)
	}

	*now = now.Add(24 * time.Hour)
	if _, created, err := mgr.AutoBackup(ctx, 24*time.Hour); err != nil || !created {
		t.Fatalf("AutoBackup after min age = %v, %v; want a new backup", created, err)
	}
}

func TestJSONStore_RoundTrip(t *testing.T) {
	path := setupStore(t, "habitat.json")
	mgr, now := newManager(path, start)
	ctx := context.Background()

	snap, err := mgr.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasSuffix(snap.Path, ".json") {
		t.Errorf("JSON snapshot has name %s", snap.Name())
	}

	writeKey(t, path, "habits/alice/h1", `{"title":"Changed"}`)
	*now = now.Add(time.Minute)

	if _, err := mgr.Restore(ctx, snap.Path); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if got := readKey(t, path, "habits/alice/h1"); got != `{"title":"Read"}` {
		t.Errorf("restored content = %s", got)
	}
}

func TestResolve(t *testing.T) {
	path := setupStore(t, "habitat.db")
	mgr, _ := newManager(path, start)
	snap, err := mgr.Create(context.Background())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := mgr.Resolve(snap.Name())
	if err != nil || got != snap.Path {
		t.Errorf("Resolve(name) = %s, %v; want %s", got, err, snap.Path)
	}
	got, err = mgr.Resolve(snap.Path)
	if err != nil || got != snap.Path {
		t.Errorf("Resolve(path) = %s, %v; want %s", got, err, snap.Path)
	}
	if _, err := mgr.Resolve("habitat-19990101-000000.db"); err == nil {
		t.Error("expected error for missing backup")
	}
}
