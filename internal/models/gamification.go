package models

import (
	"slices"
	"time"
)

// GamificationState is the per-account points and counters record.
// TotalPoints and the counters only ever increase.
type GamificationState struct {
	TotalPoints            int             `json:"total_points"`
	Level                  int             `json:"level"`
	StreakFreezes          int             `json:"streak_freezes"`
	LastStreakFreezeUsed   string          `json:"last_streak_freeze_used,omitempty"` // YYYY-MM-DD format
	FrozenDates            []string        `json:"frozen_dates,omitempty"`
	PerfectDays            int             `json:"perfect_days"`
	ConsecutivePerfectDays int             `json:"consecutive_perfect_days"`
	LastPerfectDay         string          `json:"last_perfect_day,omitempty"`
	EarlyBirdCount         int             `json:"early_bird_count"`
	NightOwlCount          int             `json:"night_owl_count"`
	ComebackCount          int             `json:"comeback_count"`
	Rewarded               map[string]bool `json:"rewarded,omitempty"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// NewGamificationState returns the state a fresh account starts with.
func NewGamificationState(freezes int) GamificationState {
	return GamificationState{
		Level:         1,
		StreakFreezes: freezes,
	}
}

// IsFrozen reports whether a streak freeze covers date.
func (g *GamificationState) IsFrozen(date string) bool {
	return slices.Contains(g.FrozenDates, date)
}

// FrozenSet returns the frozen dates as a set.
func (g *GamificationState) FrozenSet() map[string]bool {
	set := make(map[string]bool, len(g.FrozenDates))
	for _, d := range g.FrozenDates {
		set[d] = true
	}
	return set
}

// UnlockedBadge records that a badge from the catalog was earned.
type UnlockedBadge struct {
	BadgeID    string    `json:"badge_id"`
	UnlockedAt time.Time `json:"unlocked_at"`
	Notified   bool      `json:"notified"`
}
