// Package achievements turns derived progress into badge unlocks and owns
// the gamification counters that feed them.
package achievements

import (
	"fmt"
	"time"

	"github.com/julianstephens/habitat/internal/leveling"
	"github.com/julianstephens/habitat/internal/models"
)

// Snapshot is the derived state badge requirements are checked against.
type Snapshot struct {
	HabitCount             int
	BestStreak             int
	TotalCompletions       int
	PerfectDays            int
	ConsecutivePerfectDays int
	PerfectWeek            bool
	EarlyBirdCount         int
	NightOwlCount          int
	ComebackCount          int
	Level                  int
	Unlocked               map[string]models.UnlockedBadge
}

// NewSnapshot summarizes habits and gamification state for evaluation.
// perfectWeek is whether the seven days ending today were all perfect.
func NewSnapshot(habits []models.Habit, g models.GamificationState, perfectWeek bool, unlocked map[string]models.UnlockedBadge) Snapshot {
	s := Snapshot{
		HabitCount:             len(habits),
		PerfectDays:            g.PerfectDays,
		ConsecutivePerfectDays: g.ConsecutivePerfectDays,
		PerfectWeek:            perfectWeek,
		EarlyBirdCount:         g.EarlyBirdCount,
		NightOwlCount:          g.NightOwlCount,
		ComebackCount:          g.ComebackCount,
		Level:                  max(g.Level, leveling.LevelForPoints(g.TotalPoints)),
		Unlocked:               unlocked,
	}
	for _, h := range habits {
		s.BestStreak = max(s.BestStreak, h.CurrentStreak, h.LongestStreak)
		s.TotalCompletions += h.TotalCompletions
	}
	return s
}

// Satisfied reports whether the snapshot meets the badge's requirement.
func (s Snapshot) Satisfied(b Badge) bool {
	return s.value(b) >= b.Threshold
}

func (s Snapshot) value(b Badge) int {
	switch b.Kind {
	case KindHabitCount:
		return s.HabitCount
	case KindStreak:
		return s.BestStreak
	case KindTotalCompletions:
		return s.TotalCompletions
	case KindPerfectDays:
		return s.PerfectDays
	case KindPerfectWeek:
		weeks := s.ConsecutivePerfectDays / 7
		if s.PerfectWeek {
			weeks = max(weeks, 1)
		}
		return weeks
	case KindTimeOfDay:
		if b.Metric == MetricNightOwl {
			return s.NightOwlCount
		}
		return s.EarlyBirdCount
	case KindCustom:
		if b.Metric == MetricLevel {
			return s.Level
		}
		return s.ComebackCount
	default:
		panic(fmt.Sprintf("achievements: unhandled badge kind %q", b.Kind))
	}
}

// Evaluate returns, in catalog order, the ids of badges that are not yet
// unlocked and whose requirement is now satisfied.
func (c *Catalog) Evaluate(s Snapshot) []string {
	var ids []string
	for _, b := range c.Badges {
		if _, done := s.Unlocked[b.ID]; done {
			continue
		}
		if s.Satisfied(b) {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// Unlock records a badge and credits its reward in one step. Unlocking is a
// set union: a badge already present is left untouched and earns nothing.
func Unlock(g *models.GamificationState, unlocked map[string]models.UnlockedBadge, b Badge, now time.Time) bool {
	if _, done := unlocked[b.ID]; done {
		return false
	}
	unlocked[b.ID] = models.UnlockedBadge{
		BadgeID:    b.ID,
		UnlockedAt: now,
	}
	leveling.AddPoints(g, b.Points)
	return true
}

// Award evaluates the snapshot and unlocks every satisfied badge. Rewards can
// raise the level, which may satisfy level badges, so evaluation repeats
// until nothing new fires.
func (c *Catalog) Award(g *models.GamificationState, unlocked map[string]models.UnlockedBadge, s Snapshot, now time.Time) []Badge {
	var awarded []Badge
	s.Unlocked = unlocked
	for {
		ids := c.Evaluate(s)
		if len(ids) == 0 {
			return awarded
		}
		for _, id := range ids {
			b := c.byID[id]
			if Unlock(g, unlocked, b, now) {
				awarded = append(awarded, b)
			}
		}
		s.Level = max(s.Level, g.Level)
	}
}
