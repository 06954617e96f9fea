package constants

const (
	// Leveling: points required for level k are LevelBasePoints + (k-1)*LevelStepPoints.
	LevelBasePoints = 100
	LevelStepPoints = 50

	// Point awards
	CompletionPoints = 10
	PerfectDayPoints = 25

	// Streak freezes
	StreakFreezeMilestone = 7 // a freeze is granted each time a streak reaches a multiple of this
	MaxStreakFreezes      = 3
	InitialStreakFreezes  = 1

	// Time-of-day windows for completion counters (local hour)
	EarlyBirdBeforeHour = 8
	NightOwlFromHour    = 22

	// ComebackMinLongest is the longest streak a habit must have reached before
	// a completion after a broken streak counts as a comeback.
	ComebackMinLongest = 3
)
