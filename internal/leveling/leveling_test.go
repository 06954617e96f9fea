package leveling

import (
	"testing"

	"github.com/julianstephens/habitat/internal/models"
)

func TestLevelForPoints(t *testing.T) {
	tests := []struct {
		points int
		want   int
	}{
		{0, 1},
		{-10, 1},
		{99, 1},
		{100, 2},
		{120, 2},
		{249, 2},
		{250, 3},
		{449, 3},
		{450, 4},
	}

	for _, tt := range tests {
		if got := LevelForPoints(tt.points); got != tt.want {
			t.Errorf("LevelForPoints(%d) = %d, want %d", tt.points, got, tt.want)
		}
	}
}

func TestLevelForPoints_Monotonic(t *testing.T) {
	prev := LevelForPoints(0)
	if prev != 1 {
		t.Fatalf("LevelForPoints(0) = %d, want 1", prev)
	}
	for p := 1; p <= 20000; p++ {
		lvl := LevelForPoints(p)
		if lvl < prev {
			t.Fatalf("level decreased at %d points: %d < %d", p, lvl, prev)
		}
		prev = lvl
	}
}

func TestTotalXPForLevel(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{0, 0},
		{1, 0},
		{2, 100},
		{3, 250},
		{4, 450},
		{5, 700},
	}
	for _, tt := range tests {
		if got := TotalXPForLevel(tt.level); got != tt.want {
			t.Errorf("TotalXPForLevel(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestProgress(t *testing.T) {
	info := Progress(120, 2)
	if info.CurrentXP != 20 || info.NextLevelXP != 150 {
		t.Errorf("Progress(120, 2) = %+v", info)
	}
	if info.Percentage < 13.33 || info.Percentage > 13.34 {
		t.Errorf("Percentage = %f, want ~13.33", info.Percentage)
	}

	// Stale level: percentage is clamped.
	if got := Progress(1000, 1).Percentage; got != 100 {
		t.Errorf("Percentage = %f, want 100", got)
	}

	if Progress(120, 2) != Progress(120, 2) {
		t.Error("Progress must be idempotent")
	}
}

func TestAddPoints(t *testing.T) {
	g := models.NewGamificationState(0)

	AddPoints(&g, 120)
	if g.TotalPoints != 120 || g.Level != 2 {
		t.Errorf("after +120: points=%d level=%d, want 120/2", g.TotalPoints, g.Level)
	}

	AddPoints(&g, -50)
	AddPoints(&g, 0)
	if g.TotalPoints != 120 {
		t.Errorf("non-positive awards must be ignored, got %d", g.TotalPoints)
	}

	AddPoints(&g, 130)
	if g.Level != 3 {
		t.Errorf("level = %d, want 3", g.Level)
	}
}
