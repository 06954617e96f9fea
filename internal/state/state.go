// Package state owns the in-memory entity tree of the signed-in account and
// mirrors it into the local store. There is at most one account loaded at a
// time; Teardown must run before another account is initialized.
package state

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/julianstephens/habitat/internal/constants"
	"github.com/julianstephens/habitat/internal/logger"
	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/storage"
)

var (
	ErrNoAccount     = errors.New("no account loaded")
	ErrAccountLoaded = errors.New("another account is loaded; log out first")
)

// Tree is every entity belonging to one account.
type Tree struct {
	AccountID    string
	Habits       map[string]models.Habit
	Logs         map[string]models.HabitLog // keyed by models.LogKey
	Gamification models.GamificationState
	Badges       map[string]models.UnlockedBadge
	Subscription models.Subscription
}

func NewTree(accountID string) *Tree {
	return &Tree{
		AccountID:    accountID,
		Habits:       make(map[string]models.Habit),
		Logs:         make(map[string]models.HabitLog),
		Gamification: models.NewGamificationState(constants.InitialStreakFreezes),
		Badges:       make(map[string]models.UnlockedBadge),
		Subscription: models.Subscription{Tier: models.TierFree},
	}
}

// Clone copies the tree deeply enough that mutating the copy never shows
// through the original.
func (t *Tree) Clone() *Tree {
	c := *t
	c.Habits = maps.Clone(t.Habits)
	c.Logs = maps.Clone(t.Logs)
	c.Badges = maps.Clone(t.Badges)
	c.Gamification.FrozenDates = slices.Clone(t.Gamification.FrozenDates)
	c.Gamification.Rewarded = maps.Clone(t.Gamification.Rewarded)
	if c.Habits == nil {
		c.Habits = make(map[string]models.Habit)
	}
	if c.Logs == nil {
		c.Logs = make(map[string]models.HabitLog)
	}
	if c.Badges == nil {
		c.Badges = make(map[string]models.UnlockedBadge)
	}
	return &c
}

// HabitList returns habits oldest first.
func (t *Tree) HabitList() []models.Habit {
	list := slices.Collect(maps.Values(t.Habits))
	slices.SortFunc(list, func(a, b models.Habit) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return list
}

func (t *Tree) LogIndex() models.LogIndex {
	return models.NewLogIndex(slices.Collect(maps.Values(t.Logs)))
}

// LogsFor returns a habit's logs, oldest day first.
func (t *Tree) LogsFor(habitID string) []models.HabitLog {
	var out []models.HabitLog
	for _, l := range t.Logs {
		if l.HabitID == habitID {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b models.HabitLog) int { return cmp.Compare(a.Date, b.Date) })
	return out
}

// Store serializes access to the tree. Mutations run in the order they are
// issued and are persisted before Mutate returns.
type Store struct {
	mu    sync.Mutex
	local storage.Provider
	tree  *Tree
}

// New returns a store backed by local. A nil provider keeps state in memory
// only.
func New(local storage.Provider) *Store {
	return &Store{local: local}
}

// Init loads accountID's tree from the local store, or starts an empty one.
func (s *Store) Init(accountID string) error {
	if accountID == "" {
		return errors.New("account id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tree != nil {
		if s.tree.AccountID == accountID {
			return nil
		}
		return ErrAccountLoaded
	}

	t, err := s.load(accountID)
	if err != nil {
		return err
	}
	s.tree = t
	logger.Debug("Account state loaded", "account", accountID, "habits", len(t.Habits), "logs", len(t.Logs))
	return nil
}

// Teardown drops the loaded account from memory and wipes everything the
// local store holds for it, sync bookkeeping included.
func (s *Store) Teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tree == nil {
		return nil
	}
	account := s.tree.AccountID
	s.tree = nil

	if s.local != nil {
		if err := s.local.DeletePrefix(AccountPrefix(account)); err != nil {
			return fmt.Errorf("failed to wipe local state for %s: %w", account, err)
		}
	}
	logger.Debug("Account state torn down", "account", account)
	return nil
}

// AccountID returns the loaded account, or "" when none is.
func (s *Store) AccountID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree == nil {
		return ""
	}
	return s.tree.AccountID
}

// Snapshot returns a private copy of the tree.
func (s *Store) Snapshot() (*Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree == nil {
		return nil, ErrNoAccount
	}
	return s.tree.Clone(), nil
}

// Mutate applies fn to a copy of the tree and commits it if fn succeeds.
// fn runs under the store lock and must not call back into the Store.
func (s *Store) Mutate(fn func(*Tree) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree == nil {
		return ErrNoAccount
	}

	next := s.tree.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.AccountID = s.tree.AccountID

	if err := s.persistDiff(s.tree, next); err != nil {
		return err
	}
	s.tree = next
	return nil
}

// Replace swaps in a whole tree for the loaded account, as a full sync does.
func (s *Store) Replace(t *Tree) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree == nil {
		return ErrNoAccount
	}
	if t.AccountID != s.tree.AccountID {
		return fmt.Errorf("refusing to replace %s state with a tree for %s", s.tree.AccountID, t.AccountID)
	}

	next := t.Clone()
	if err := s.persistDiff(s.tree, next); err != nil {
		return err
	}
	s.tree = next
	return nil
}

func (s *Store) load(account string) (*Tree, error) {
	t := NewTree(account)
	if s.local == nil {
		return t, nil
	}

	if err := loadCollection(s.local, HabitsCollection(account), t.Habits); err != nil {
		return nil, err
	}
	if err := loadCollection(s.local, LogsCollection(account), t.Logs); err != nil {
		return nil, err
	}
	if err := loadCollection(s.local, BadgesCollection(account), t.Badges); err != nil {
		return nil, err
	}
	if err := loadOne(s.local, GamificationPath(account), &t.Gamification); err != nil {
		return nil, err
	}
	if err := loadOne(s.local, SubscriptionPath(account), &t.Subscription); err != nil {
		return nil, err
	}
	return t, nil
}

func loadCollection[T any](p storage.Provider, collection string, into map[string]T) error {
	entries, err := p.List(collection + "/")
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", collection, err)
	}
	for key, raw := range entries {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			logger.Warn("Skipping unreadable local entry", "key", key, "error", err)
			continue
		}
		into[strings.TrimPrefix(key, collection+"/")] = v
	}
	return nil
}

func loadOne(p storage.Provider, key string, into any) error {
	err := storage.GetJSON(p, key, into)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

func (s *Store) persistDiff(prev, next *Tree) error {
	if s.local == nil {
		return nil
	}
	account := next.AccountID

	if err := persistMap(s.local, prev.Habits, next.Habits, func(id string) string { return HabitPath(account, id) }); err != nil {
		return err
	}
	if err := persistMap(s.local, prev.Logs, next.Logs, func(k string) string { return LogPath(account, k) }); err != nil {
		return err
	}
	if err := persistMap(s.local, prev.Badges, next.Badges, func(id string) string { return BadgePath(account, id) }); err != nil {
		return err
	}
	if err := persistValue(s.local, GamificationPath(account), prev.Gamification, next.Gamification); err != nil {
		return err
	}
	return persistValue(s.local, SubscriptionPath(account), prev.Subscription, next.Subscription)
}

func persistMap[T any](p storage.Provider, prev, next map[string]T, key func(string) string) error {
	for id, v := range next {
		old, ok := prev[id]
		if err := putIfChanged(p, key(id), old, v, ok); err != nil {
			return err
		}
	}
	for id := range prev {
		if _, ok := next[id]; ok {
			continue
		}
		if err := p.Delete(key(id)); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key(id), err)
		}
	}
	return nil
}

func persistValue[T any](p storage.Provider, key string, prev, next T) error {
	return putIfChanged(p, key, prev, next, true)
}

func putIfChanged[T any](p storage.Provider, key string, prev, next T, existed bool) error {
	b, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if existed {
		if old, err := json.Marshal(prev); err == nil && bytes.Equal(old, b) {
			return nil
		}
	}
	if err := p.Put(key, b); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}
