package state

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/storage"
)

func newLocal(t *testing.T) storage.Provider {
	t.Helper()
	p := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "habitat.db"))
	if err := p.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func addHabit(id string) func(*Tree) error {
	return func(tr *Tree) error {
		tr.Habits[id] = models.Habit{
			ID:        id,
			Title:     "Habit " + id,
			Frequency: models.NewFrequency(models.Daily{}),
			CreatedAt: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		}
		return nil
	}
}

func TestStore_RequiresAccount(t *testing.T) {
	s := New(nil)
	if _, err := s.Snapshot(); !errors.Is(err, ErrNoAccount) {
		t.Errorf("Snapshot() error = %v, want ErrNoAccount", err)
	}
	if err := s.Mutate(addHabit("h1")); !errors.Is(err, ErrNoAccount) {
		t.Errorf("Mutate() error = %v, want ErrNoAccount", err)
	}
	if err := s.Init(""); err == nil {
		t.Error("Init(\"\") should fail")
	}
}

func TestStore_Init(t *testing.T) {
	s := New(nil)
	if err := s.Init("alice"); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := s.Init("alice"); err != nil {
		t.Errorf("re-Init of the same account error: %v", err)
	}
	if err := s.Init("bob"); !errors.Is(err, ErrAccountLoaded) {
		t.Errorf("Init(other) error = %v, want ErrAccountLoaded", err)
	}

	tr, _ := s.Snapshot()
	if tr.Gamification.Level != 1 || tr.Gamification.StreakFreezes != 1 {
		t.Errorf("fresh gamification = %+v", tr.Gamification)
	}
	if tr.Subscription.Tier != models.TierFree {
		t.Errorf("fresh tier = %q, want free", tr.Subscription.Tier)
	}
}

func TestStore_SnapshotIsolated(t *testing.T) {
	s := New(nil)
	_ = s.Init("alice")
	_ = s.Mutate(addHabit("h1"))

	snap, _ := s.Snapshot()
	delete(snap.Habits, "h1")
	snap.Gamification.FrozenDates = append(snap.Gamification.FrozenDates, "2026-01-07")

	again, _ := s.Snapshot()
	if _, ok := again.Habits["h1"]; !ok {
		t.Error("deleting from a snapshot changed the store")
	}
	if len(again.Gamification.FrozenDates) != 0 {
		t.Error("appending to a snapshot slice changed the store")
	}
}

func TestStore_MutateErrorDiscards(t *testing.T) {
	s := New(nil)
	_ = s.Init("alice")

	boom := errors.New("boom")
	err := s.Mutate(func(tr *Tree) error {
		_ = addHabit("h1")(tr)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Mutate() error = %v, want boom", err)
	}
	tr, _ := s.Snapshot()
	if len(tr.Habits) != 0 {
		t.Error("failed mutation left changes behind")
	}
}

func TestStore_PersistsAcrossRestarts(t *testing.T) {
	local := newLocal(t)

	s := New(local)
	_ = s.Init("alice")
	_ = s.Mutate(addHabit("h1"))
	_ = s.Mutate(addHabit("h2"))
	_ = s.Mutate(func(tr *Tree) error {
		tr.Logs[models.LogKey("h1", "2026-01-07")] = models.HabitLog{HabitID: "h1", Date: "2026-01-07", Status: models.LogCompleted}
		tr.Gamification.TotalPoints = 10
		delete(tr.Habits, "h2")
		return nil
	})

	reopened := New(local)
	if err := reopened.Init("alice"); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	tr, _ := reopened.Snapshot()
	if len(tr.Habits) != 1 || tr.Habits["h1"].Title != "Habit h1" {
		t.Errorf("habits after reload = %v", tr.Habits)
	}
	if len(tr.Logs) != 1 {
		t.Errorf("logs after reload = %v", tr.Logs)
	}
	if tr.Gamification.TotalPoints != 10 {
		t.Errorf("points after reload = %d, want 10", tr.Gamification.TotalPoints)
	}
}

func TestStore_Teardown(t *testing.T) {
	local := newLocal(t)
	s := New(local)
	_ = s.Init("alice")
	_ = s.Mutate(addHabit("h1"))
	_ = local.Put(SyncPrefix("alice")+"dirty", []byte(`{}`))
	_ = local.Put(HabitPath("alicia", "x"), []byte(`{}`))

	if err := s.Teardown(); err != nil {
		t.Fatalf("Teardown() error: %v", err)
	}
	if s.AccountID() != "" {
		t.Error("account still loaded after Teardown")
	}

	left, _ := local.List(AccountPrefix("alice"))
	if len(left) != 0 {
		t.Errorf("Teardown left %d local entries", len(left))
	}
	if _, err := local.Get(HabitPath("alicia", "x")); err != nil {
		t.Errorf("Teardown touched another account: %v", err)
	}

	if err := s.Init("bob"); err != nil {
		t.Errorf("Init(bob) after Teardown error: %v", err)
	}
}

func TestStore_Replace(t *testing.T) {
	s := New(newLocal(t))
	_ = s.Init("alice")
	_ = s.Mutate(addHabit("h1"))

	next := NewTree("alice")
	_ = addHabit("h2")(next)
	if err := s.Replace(next); err != nil {
		t.Fatalf("Replace() error: %v", err)
	}
	tr, _ := s.Snapshot()
	if _, ok := tr.Habits["h1"]; ok {
		t.Error("Replace kept a habit missing from the new tree")
	}

	if err := s.Replace(NewTree("bob")); err == nil {
		t.Error("Replace with another account's tree should fail")
	}
}

func TestTree_HabitList(t *testing.T) {
	tr := NewTree("alice")
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	tr.Habits["b"] = models.Habit{ID: "b", CreatedAt: base}
	tr.Habits["a"] = models.Habit{ID: "a", CreatedAt: base}
	tr.Habits["c"] = models.Habit{ID: "c", CreatedAt: base.Add(-time.Hour)}

	var ids []string
	for _, h := range tr.HabitList() {
		ids = append(ids, h.ID)
	}
	if len(ids) != 3 || ids[0] != "c" || ids[1] != "a" || ids[2] != "b" {
		t.Errorf("HabitList() order = %v, want [c a b]", ids)
	}
}

func TestTree_LogsFor(t *testing.T) {
	tr := NewTree("alice")
	for _, l := range []models.HabitLog{
		{HabitID: "h1", Date: "2026-01-07"},
		{HabitID: "h2", Date: "2026-01-06"},
		{HabitID: "h1", Date: "2026-01-05"},
	} {
		tr.Logs[l.Key()] = l
	}
	got := tr.LogsFor("h1")
	if len(got) != 2 || got[0].Date != "2026-01-05" {
		t.Errorf("LogsFor(h1) = %v", got)
	}
}
