// Package tracker implements the user-facing habit operations. Every change
// is an optimistic local mutation submitted to the sync coordinator; derived
// values (streaks, level, badges) are recomputed inside the same mutation.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitat/internal/achievements"
	"github.com/julianstephens/habitat/internal/constants"
	"github.com/julianstephens/habitat/internal/leveling"
	"github.com/julianstephens/habitat/internal/logger"
	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/progress"
	"github.com/julianstephens/habitat/internal/reminders"
	"github.com/julianstephens/habitat/internal/state"
	"github.com/julianstephens/habitat/internal/syncer"
	"github.com/julianstephens/habitat/internal/utils"
)

var (
	ErrHabitNotFound = errors.New("habit not found")
	ErrFutureDate    = errors.New("cannot log a day in the future")
)

type Options struct {
	Location *time.Location
	// Scheduler receives reminder triggers. Nil disables reminders.
	Scheduler reminders.Scheduler
	Catalog   *achievements.Catalog
	Now       func() time.Time
}

type Service struct {
	store     *state.Store
	coord     *syncer.Coordinator
	catalog   *achievements.Catalog
	scheduler reminders.Scheduler
	loc       *time.Location
	now       func() time.Time
}

func New(store *state.Store, coord *syncer.Coordinator, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Catalog == nil {
		opts.Catalog = achievements.MustDefault()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:     store,
		coord:     coord,
		catalog:   opts.Catalog,
		scheduler: opts.Scheduler,
		loc:       opts.Location,
		now:       opts.Now,
	}
}

// Outcome is what a mutation changed beyond the edit itself.
type Outcome struct {
	Pending        *syncer.Pending
	Awarded        []achievements.Badge
	FreezesGranted int
	PerfectDay     bool
}

// Refresher returns the coordinator's recompute hook: it refreshes cached
// streaks and the level on a freshly merged tree. Points and badges are
// never awarded here.
func Refresher(loc *time.Location, now func() time.Time) func(*state.Tree) {
	return func(t *state.Tree) {
		today := now().In(loc)
		progress.RecomputeAll(t.Habits, t.LogIndex(), today, t.Gamification.FrozenSet())
		t.Gamification.Level = max(t.Gamification.Level, leveling.LevelForPoints(t.Gamification.TotalPoints))
	}
}

func (s *Service) today() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) todayString() string {
	return s.today().Format(constants.DateFormat)
}

// resolveDay validates a YYYY-MM-DD day, defaulting to today. Future days
// are rejected.
func (s *Service) resolveDay(day string) (string, error) {
	today := s.todayString()
	if day == "" {
		return today, nil
	}
	if _, err := utils.ParseDay(day); err != nil {
		return "", err
	}
	if day > today {
		return "", fmt.Errorf("%w: %s", ErrFutureDate, day)
	}
	return day, nil
}

func (s *Service) submit(ctx context.Context, name string, apply func(*state.Tree, *Outcome) error) (*Outcome, error) {
	var out Outcome
	p, err := s.coord.Submit(ctx, syncer.Mutation{
		Name: name,
		Apply: func(t *state.Tree) error {
			out = Outcome{}
			return apply(t, &out)
		},
	})
	if err != nil {
		return nil, err
	}
	out.Pending = p
	return &out, nil
}

// recompute refreshes every habit's cached fields against today.
func (s *Service) recompute(t *state.Tree) {
	progress.RecomputeAll(t.Habits, t.LogIndex(), s.today(), t.Gamification.FrozenSet())
}

// award unlocks every badge the tree now satisfies.
func (s *Service) award(t *state.Tree, out *Outcome) {
	habits := t.HabitList()
	perfectWeek := progress.IsPerfectWeek(habits, t.LogIndex(), s.today())
	snap := achievements.NewSnapshot(habits, t.Gamification, perfectWeek, t.Badges)
	awarded := s.catalog.Award(&t.Gamification, t.Badges, snap, s.now())
	out.Awarded = append(out.Awarded, awarded...)
	for _, b := range awarded {
		logger.Info("Badge unlocked", "badge", b.ID, "points", b.Points)
	}
}

// CreateHabit stores a new habit. ID, timestamps and cached fields are
// assigned here; everything else comes from h.
func (s *Service) CreateHabit(ctx context.Context, h models.Habit) (models.Habit, *Outcome, error) {
	now := s.now()
	h.ID = uuid.NewString()
	h.CreatedAt = now
	h.UpdatedAt = now
	h.CurrentStreak, h.LongestStreak, h.TotalCompletions = 0, 0, 0
	if err := h.Validate(); err != nil {
		return models.Habit{}, nil, err
	}

	out, err := s.submit(ctx, "create habit", func(t *state.Tree, out *Outcome) error {
		t.Habits[h.ID] = h
		s.recompute(t)
		s.award(t, out)
		return nil
	})
	if err != nil {
		return models.Habit{}, nil, err
	}

	s.applyReminders(ctx, h)
	return h, out, nil
}

// UpdateHabit applies edit to a copy of the habit. The id, creation time and
// cached fields cannot be changed through edit.
func (s *Service) UpdateHabit(ctx context.Context, id string, edit func(*models.Habit)) (models.Habit, *Outcome, error) {
	var updated models.Habit
	out, err := s.submit(ctx, "update habit", func(t *state.Tree, out *Outcome) error {
		cur, ok := t.Habits[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrHabitNotFound, id)
		}

		next := cur
		edit(&next)
		next.ID = cur.ID
		next.CreatedAt = cur.CreatedAt
		next.CurrentStreak, next.LongestStreak, next.TotalCompletions = cur.CurrentStreak, cur.LongestStreak, cur.TotalCompletions
		next.UpdatedAt = s.now()
		if err := next.Validate(); err != nil {
			return err
		}

		t.Habits[id] = next
		s.recompute(t)
		s.award(t, out)
		updated = t.Habits[id]
		return nil
	})
	if err != nil {
		return models.Habit{}, nil, err
	}

	s.applyReminders(ctx, updated)
	return updated, out, nil
}

// DeleteHabit removes a habit, every log that references it and its
// reminder triggers.
func (s *Service) DeleteHabit(ctx context.Context, id string) (*Outcome, error) {
	out, err := s.submit(ctx, "delete habit", func(t *state.Tree, out *Outcome) error {
		if _, ok := t.Habits[id]; !ok {
			return fmt.Errorf("%w: %s", ErrHabitNotFound, id)
		}
		delete(t.Habits, id)
		for key, l := range t.Logs {
			if l.HabitID == id {
				delete(t.Logs, key)
			}
		}
		s.recompute(t)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.scheduler != nil {
		if err := reminders.Cancel(ctx, s.scheduler, id); err != nil {
			logger.Warn("Failed to cancel reminders", "habit", id, "error", err)
		}
	}
	return out, nil
}

// Complete records a completion for day (today when empty). The first
// completion of a (habit, day) earns points and feeds the time-of-day and
// comeback counters; undoing and redoing it earns nothing further.
func (s *Service) Complete(ctx context.Context, habitID, day string) (*Outcome, error) {
	day, err := s.resolveDay(day)
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, "complete", func(t *state.Tree, out *Outcome) error {
		h, ok := t.Habits[habitID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrHabitNotFound, habitID)
		}

		now := s.now()
		before := progress.Recompute(h, t.LogIndex(), s.today(), t.Gamification.FrozenSet())

		key := models.LogKey(habitID, day)
		prev, exists := t.Logs[key]
		if exists && prev.Status == models.LogCompleted {
			return nil
		}
		l := models.HabitLog{
			ID:          uuid.NewString(),
			HabitID:     habitID,
			Date:        day,
			Status:      models.LogCompleted,
			CompletedAt: &now,
			UpdatedAt:   now,
		}
		if exists {
			l.ID = prev.ID
		}
		t.Logs[key] = l

		if achievements.ClaimCompletionReward(&t.Gamification, key) {
			achievements.RecordCompletion(&t.Gamification, now.In(s.loc), before.CurrentStreak, before.LongestStreak)
		}

		s.recompute(t)
		after := t.Habits[habitID]
		if achievements.StreakMilestoneReached(before.CurrentStreak, after.CurrentStreak) {
			out.FreezesGranted = achievements.GrantStreakFreezes(&t.Gamification, 1)
		}

		if progress.IsPerfectDay(t.HabitList(), t.LogIndex(), utils.MustParseDay(day)) {
			out.PerfectDay = achievements.RecordPerfectDay(&t.Gamification, day)
		}

		s.award(t, out)
		return nil
	})
}

// Skip marks day as deliberately skipped. Skipped days neither extend nor
// break a streak. Points already earned for the day are kept.
func (s *Service) Skip(ctx context.Context, habitID, day string) (*Outcome, error) {
	day, err := s.resolveDay(day)
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, "skip", func(t *state.Tree, out *Outcome) error {
		if _, ok := t.Habits[habitID]; !ok {
			return fmt.Errorf("%w: %s", ErrHabitNotFound, habitID)
		}
		now := s.now()
		key := models.LogKey(habitID, day)
		l := models.HabitLog{ID: uuid.NewString(), HabitID: habitID, Date: day, Status: models.LogSkipped, UpdatedAt: now}
		if prev, ok := t.Logs[key]; ok {
			l.ID = prev.ID
		}
		t.Logs[key] = l
		s.recompute(t)
		s.award(t, out)
		return nil
	})
}

// Undo deletes the log for day, if any.
func (s *Service) Undo(ctx context.Context, habitID, day string) (*Outcome, error) {
	day, err := s.resolveDay(day)
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, "undo", func(t *state.Tree, out *Outcome) error {
		if _, ok := t.Habits[habitID]; !ok {
			return fmt.Errorf("%w: %s", ErrHabitNotFound, habitID)
		}
		delete(t.Logs, models.LogKey(habitID, day))
		s.recompute(t)
		return nil
	})
}

// UseStreakFreeze spends a freeze on today. It reports false, without
// error, when no freeze is left or one was already used today.
func (s *Service) UseStreakFreeze(ctx context.Context) (bool, *Outcome, error) {
	var used bool
	out, err := s.submit(ctx, "use streak freeze", func(t *state.Tree, out *Outcome) error {
		used = achievements.UseStreakFreeze(&t.Gamification, s.todayString())
		if !used {
			return nil
		}
		s.recompute(t)
		s.award(t, out)
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return used, out, nil
}

// MarkAnnounced records that the unlock celebration of the given badges
// was shown. The flag syncs, so other devices do not celebrate them again.
// Unknown or already announced ids are ignored.
func (s *Service) MarkAnnounced(ctx context.Context, badgeIDs []string) (*Outcome, error) {
	if len(badgeIDs) == 0 {
		return &Outcome{}, nil
	}
	return s.submit(ctx, "mark badges announced", func(t *state.Tree, _ *Outcome) error {
		for _, id := range badgeIDs {
			u, ok := t.Badges[id]
			if !ok || u.Notified {
				continue
			}
			u.Notified = true
			t.Badges[id] = u
		}
		return nil
	})
}

// SyncReminders re-applies every habit's reminders, as after a sync brought
// in edits from another device.
func (s *Service) SyncReminders(ctx context.Context) error {
	if s.scheduler == nil {
		return nil
	}
	t, err := s.store.Snapshot()
	if err != nil {
		return err
	}
	var errs []error
	for _, h := range t.HabitList() {
		if _, err := reminders.Apply(ctx, s.scheduler, h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) applyReminders(ctx context.Context, h models.Habit) {
	if s.scheduler == nil {
		return
	}
	if _, err := reminders.Apply(ctx, s.scheduler, h); err != nil {
		logger.Warn("Failed to schedule reminders", "habit", h.ID, "error", err)
	}
}
