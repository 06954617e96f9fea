package tracker

import (
	"fmt"
	"sort"
	"time"

	"github.com/julianstephens/habitat/internal/achievements"
	"github.com/julianstephens/habitat/internal/leveling"
	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/progress"
	"github.com/julianstephens/habitat/internal/schedule"
	"github.com/julianstephens/habitat/internal/state"
)

type TodayItem struct {
	Habit  models.Habit
	Due    bool
	Status models.LogStatus // empty when nothing is logged
	// WeeklyTarget estimates completions expected over 7 days.
	WeeklyTarget int
	Quota        *Quota // nil unless the habit is x_times_per_period
}

// Quota is a TimesPerPeriod habit's standing in its current calendar period.
type Quota struct {
	Period models.Period
	Target int
	Done   int
}

func (q Quota) Remaining() int { return max(0, q.Target-q.Done) }

func (q Quota) Met() bool { return q.Done >= q.Target }

// String renders the standing as "2/3 this week".
func (q Quota) String() string {
	return fmt.Sprintf("%d/%d this %s", q.Done, q.Target, q.Period)
}

// quotaFor counts the habit's completions in the period containing today.
func quotaFor(h models.Habit, logs models.LogIndex, today time.Time) *Quota {
	cfg := h.Frequency.Get()
	start, end, ok := schedule.QuotaPeriod(cfg, today)
	if !ok {
		return nil
	}
	c := cfg.(models.TimesPerPeriod)
	period := c.Period
	if period == "" {
		period = models.PeriodWeek
	}
	return &Quota{
		Period: period,
		Target: c.Times,
		Done:   progress.CompletionsBetween(h, logs, start, end),
	}
}

type TodayView struct {
	Date     string
	Progress progress.Daily
	Items    []TodayItem
	Level    leveling.Info
}

type Stats struct {
	Points                 int
	Level                  leveling.Info
	StreakFreezes          int
	PerfectDays            int
	ConsecutivePerfectDays int
	Week                   []progress.Daily
	PerfectWeek            bool
	Habits                 []models.Habit
	// Quotas holds the current period of every x_times_per_period habit,
	// keyed by habit id.
	Quotas map[string]Quota
}

type BadgeStatus struct {
	Badge      achievements.Badge
	Unlocked   bool
	UnlockedAt time.Time
}

// view returns a snapshot whose cached fields are current as of today. It
// never writes.
func (s *Service) view() (*state.Tree, error) {
	t, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}
	s.recompute(t)
	return t, nil
}

// Habits lists habits oldest first.
func (s *Service) Habits() ([]models.Habit, error) {
	t, err := s.view()
	if err != nil {
		return nil, err
	}
	return t.HabitList(), nil
}

func (s *Service) Habit(id string) (models.Habit, error) {
	t, err := s.view()
	if err != nil {
		return models.Habit{}, err
	}
	h, ok := t.Habits[id]
	if !ok {
		return models.Habit{}, fmt.Errorf("%w: %s", ErrHabitNotFound, id)
	}
	return h, nil
}

func (s *Service) Today() (TodayView, error) {
	t, err := s.view()
	if err != nil {
		return TodayView{}, err
	}

	today := s.today()
	day := s.todayString()
	habits := t.HabitList()
	idx := t.LogIndex()

	v := TodayView{
		Date:     day,
		Progress: progress.DailyProgress(habits, idx, today),
		Level:    leveling.ForPoints(t.Gamification.TotalPoints),
	}
	for _, h := range habits {
		item := TodayItem{
			Habit:        h,
			Due:          schedule.IsDue(h.Frequency.Get(), today),
			WeeklyTarget: schedule.WeeklyTarget(h.Frequency.Get()),
			Quota:        quotaFor(h, idx, today),
		}
		if status, ok := idx.Status(h.ID, day); ok {
			item.Status = status
		}
		v.Items = append(v.Items, item)
	}
	return v, nil
}

func (s *Service) Stats() (Stats, error) {
	t, err := s.view()
	if err != nil {
		return Stats{}, err
	}
	habits := t.HabitList()
	idx := t.LogIndex()
	g := t.Gamification

	quotas := make(map[string]Quota)
	for _, h := range habits {
		if q := quotaFor(h, idx, s.today()); q != nil {
			quotas[h.ID] = *q
		}
	}

	return Stats{
		Points:                 g.TotalPoints,
		Level:                  leveling.ForPoints(g.TotalPoints),
		StreakFreezes:          g.StreakFreezes,
		PerfectDays:            g.PerfectDays,
		ConsecutivePerfectDays: g.ConsecutivePerfectDays,
		Week:                   progress.WeekCompletion(habits, idx, s.today()),
		PerfectWeek:            progress.IsPerfectWeek(habits, idx, s.today()),
		Habits:                 habits,
		Quotas:                 quotas,
	}, nil
}

// Quota reports the habit's current-period standing; nil when the habit
// has no per-period quota.
func (s *Service) Quota(id string) (*Quota, error) {
	t, err := s.view()
	if err != nil {
		return nil, err
	}
	h, ok := t.Habits[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHabitNotFound, id)
	}
	return quotaFor(h, t.LogIndex(), s.today()), nil
}

// Unannounced lists unlocked badges whose celebration has not been shown
// on any device, oldest unlock first. Ids missing from the catalog are
// ignored.
func (s *Service) Unannounced() ([]achievements.Badge, error) {
	t, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}
	var unlocked []models.UnlockedBadge
	for _, u := range t.Badges {
		if u.Notified {
			continue
		}
		if _, ok := s.catalog.Get(u.BadgeID); ok {
			unlocked = append(unlocked, u)
		}
	}
	sort.Slice(unlocked, func(i, j int) bool {
		if !unlocked[i].UnlockedAt.Equal(unlocked[j].UnlockedAt) {
			return unlocked[i].UnlockedAt.Before(unlocked[j].UnlockedAt)
		}
		return unlocked[i].BadgeID < unlocked[j].BadgeID
	})

	out := make([]achievements.Badge, 0, len(unlocked))
	for _, u := range unlocked {
		b, _ := s.catalog.Get(u.BadgeID)
		out = append(out, b)
	}
	return out, nil
}

// Badges lists the whole catalog with unlock state, in catalog order.
func (s *Service) Badges() ([]BadgeStatus, error) {
	t, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}
	out := make([]BadgeStatus, 0, len(s.catalog.Badges))
	for _, b := range s.catalog.Badges {
		st := BadgeStatus{Badge: b}
		if u, ok := t.Badges[b.ID]; ok {
			st.Unlocked = true
			st.UnlockedAt = u.UnlockedAt
		}
		out = append(out, st)
	}
	return out, nil
}
