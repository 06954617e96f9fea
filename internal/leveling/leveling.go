// Package leveling maps a point total to a level. Thresholds grow
// arithmetically: level k takes LevelBasePoints + (k-1)*LevelStepPoints
// points to clear.
package leveling

import (
	"github.com/julianstephens/habitat/internal/constants"
	"github.com/julianstephens/habitat/internal/models"
)

// Info describes progress inside the current level.
type Info struct {
	Level       int     `json:"level"`
	CurrentXP   int     `json:"current_xp"`
	NextLevelXP int     `json:"next_level_xp"`
	Percentage  float64 `json:"percentage"`
}

// PointsForLevel returns the points needed to clear level k (1-indexed).
func PointsForLevel(k int) int {
	if k < 1 {
		k = 1
	}
	return constants.LevelBasePoints + (k-1)*constants.LevelStepPoints
}

// TotalXPForLevel returns the cumulative points at which level k begins.
// TotalXPForLevel(1) is 0.
func TotalXPForLevel(k int) int {
	if k <= 1 {
		return 0
	}
	n := k - 1
	// Sum of an arithmetic progression of n terms starting at LevelBasePoints.
	return n*constants.LevelBasePoints + constants.LevelStepPoints*n*(n-1)/2
}

// LevelForPoints returns the level reached with the given point total.
// The result is always at least 1.
func LevelForPoints(points int) int {
	level := 1
	total := 0
	for {
		next := total + PointsForLevel(level)
		if next > points {
			return level
		}
		total = next
		level++
	}
}

// Progress reports how far points are into level.
func Progress(points, level int) Info {
	if level < 1 {
		level = 1
	}
	start := TotalXPForLevel(level)
	span := TotalXPForLevel(level+1) - start

	info := Info{
		Level:       level,
		CurrentXP:   points - start,
		NextLevelXP: span,
	}
	if span > 0 {
		info.Percentage = min(100, float64(info.CurrentXP)/float64(span)*100)
	}
	if info.Percentage < 0 {
		info.Percentage = 0
	}
	return info
}

// ForPoints is Progress at the level points currently reach.
func ForPoints(points int) Info {
	return Progress(points, LevelForPoints(points))
}

// AddPoints credits points to the state and recomputes its level.
// Non-positive amounts are ignored so the total never decreases.
func AddPoints(g *models.GamificationState, points int) {
	if points <= 0 {
		return
	}
	g.TotalPoints += points
	g.Level = LevelForPoints(g.TotalPoints)
}
