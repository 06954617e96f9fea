package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func providers(t *testing.T) map[string]Provider {
	dir := t.TempDir()
	return map[string]Provider{
		"sqlite": NewSQLiteStore(filepath.Join(dir, "habitat.db")),
		"json":   NewJSONStore(filepath.Join(dir, "habitat.json")),
	}
}

func TestProvider_Contract(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			if err := p.Init(); err != nil {
				t.Fatalf("Init() error: %v", err)
			}
			defer p.Close()

			if _, err := p.Get("accounts/a/habits/h1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}

			must(t, p.Put("accounts/a/habits/h1", []byte(`{"title":"Read"}`)))
			must(t, p.Put("accounts/a/habits/h1", []byte(`{"title":"Read more"}`)))
			must(t, p.Put("accounts/a/habits/h2", []byte(`{"title":"Run"}`)))
			must(t, p.Put("accounts/a/sync/meta", []byte(`{}`)))
			must(t, p.Put("accounts/ab/habits/h3", []byte(`{"title":"Other account"}`)))

			got, err := p.Get("accounts/a/habits/h1")
			if err != nil || string(got) != `{"title":"Read more"}` {
				t.Errorf("Get() = %s, %v", got, err)
			}

			habits, err := p.List("accounts/a/habits/")
			if err != nil {
				t.Fatalf("List() error: %v", err)
			}
			if len(habits) != 2 {
				t.Errorf("List() returned %d entries, want 2", len(habits))
			}

			must(t, p.Delete("accounts/a/habits/h2"))
			must(t, p.Delete("accounts/a/habits/never-existed"))

			must(t, p.DeletePrefix("accounts/a/"))
			all, _ := p.List("accounts/")
			if len(all) != 1 {
				t.Errorf("DeletePrefix left %v", keys(all))
			}
			if _, ok := all["accounts/ab/habits/h3"]; !ok {
				t.Error("DeletePrefix removed a sibling account with a shared name prefix")
			}
		})
	}
}

func TestProvider_Persists(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			must(t, p.Init())
			must(t, PutJSON(p, "accounts/a/gamification/state", map[string]int{"total_points": 120}))
			must(t, p.Close())

			reopened := New(p.GetPath())
			must(t, reopened.Load())
			defer reopened.Close()

			var got map[string]int
			must(t, GetJSON(reopened, "accounts/a/gamification/state", &got))
			if got["total_points"] != 120 {
				t.Errorf("total_points = %d, want 120", got["total_points"])
			}
		})
	}
}

func TestProvider_LoadBeforeInit(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			if err := p.Load(); !errors.Is(err, ErrNotInitialized) {
				t.Errorf("Load() error = %v, want ErrNotInitialized", err)
			}
		})
	}
}

func TestNew_PicksBackend(t *testing.T) {
	if _, ok := New("/tmp/x.JSON").(*JSONStore); !ok {
		t.Error("a .json path should select JSONStore")
	}
	if _, ok := New("/tmp/x.db").(*SQLiteStore); !ok {
		t.Error("other paths should select SQLiteStore")
	}
}

func TestJSONStore_BinaryValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "habitat.json")
	s := NewJSONStore(path)
	must(t, s.Init())
	must(t, s.Put("blob", []byte{0x00, 0xff, 0x10}))

	raw, _ := os.ReadFile(path)
	if len(raw) == 0 {
		t.Fatal("file not written")
	}

	reopened := NewJSONStore(path)
	must(t, reopened.Load())
	got, err := reopened.Get("blob")
	if err != nil || string(got) != string([]byte{0x00, 0xff, 0x10}) {
		t.Errorf("Get(blob) = %v, %v", got, err)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func keys(m map[string][]byte) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestSQLiteStore_SchemaVersion(t *testing.T) {
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "habitat.db"))
	if _, _, err := s.SchemaVersion(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SchemaVersion() before Init error = %v, want ErrNotInitialized", err)
	}
	must(t, s.Init())
	defer s.Close()

	current, latest, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion() error: %v", err)
	}
	if current != latest || latest < 1 {
		t.Errorf("SchemaVersion() = %d, %d; want equal and positive", current, latest)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}
