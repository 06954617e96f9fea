package achievements

import (
	"time"

	"github.com/julianstephens/habitat/internal/constants"
	"github.com/julianstephens/habitat/internal/leveling"
	"github.com/julianstephens/habitat/internal/models"
	"github.com/julianstephens/habitat/internal/utils"
)

// UseStreakFreeze spends one freeze to cover today. At most one freeze can be
// spent per calendar day; spending with none left is refused. Both refusals
// return false and leave the state untouched.
func UseStreakFreeze(g *models.GamificationState, today string) bool {
	if g.StreakFreezes <= 0 {
		return false
	}
	if g.LastStreakFreezeUsed == today {
		return false
	}
	g.StreakFreezes--
	g.LastStreakFreezeUsed = today
	if !g.IsFrozen(today) {
		g.FrozenDates = append(g.FrozenDates, today)
	}
	return true
}

// GrantStreakFreezes adds n freezes without exceeding MaxStreakFreezes and
// returns how many were actually granted.
func GrantStreakFreezes(g *models.GamificationState, n int) int {
	if n <= 0 {
		return 0
	}
	granted := min(n, constants.MaxStreakFreezes-g.StreakFreezes)
	if granted <= 0 {
		return 0
	}
	g.StreakFreezes += granted
	return granted
}

// StreakMilestoneReached reports whether a streak moving from before to
// after crossed a freeze milestone.
func StreakMilestoneReached(before, after int) bool {
	if after <= before || after <= 0 {
		return false
	}
	return after/constants.StreakFreezeMilestone > before/constants.StreakFreezeMilestone
}

// ClaimCompletionReward credits completion points for a log key once.
// Undoing and redoing the same day earns nothing further.
func ClaimCompletionReward(g *models.GamificationState, logKey string) bool {
	if g.Rewarded[logKey] {
		return false
	}
	if g.Rewarded == nil {
		g.Rewarded = make(map[string]bool)
	}
	g.Rewarded[logKey] = true
	leveling.AddPoints(g, constants.CompletionPoints)
	return true
}

// RecordCompletion bumps the time-of-day and comeback counters for a
// completion made at `at` (local time). streakBefore and longestBefore are
// the habit's streaks before this completion was logged.
func RecordCompletion(g *models.GamificationState, at time.Time, streakBefore, longestBefore int) {
	hour := at.Hour()
	if hour < constants.EarlyBirdBeforeHour {
		g.EarlyBirdCount++
	}
	if hour >= constants.NightOwlFromHour {
		g.NightOwlCount++
	}
	if streakBefore == 0 && longestBefore >= constants.ComebackMinLongest {
		g.ComebackCount++
	}
}

// RecordPerfectDay counts a perfect day once and maintains the run of
// consecutive perfect days. Days earlier than the last counted perfect day
// are ignored so replays and backfills cannot double count.
func RecordPerfectDay(g *models.GamificationState, date string) bool {
	if g.LastPerfectDay != "" && date <= g.LastPerfectDay {
		return false
	}

	yesterday, err := utils.AddDays(date, -1)
	if err != nil {
		return false
	}
	if g.LastPerfectDay == yesterday {
		g.ConsecutivePerfectDays++
	} else {
		g.ConsecutivePerfectDays = 1
	}
	g.PerfectDays++
	g.LastPerfectDay = date
	leveling.AddPoints(g, constants.PerfectDayPoints)
	return true
}
