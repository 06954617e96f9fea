package models

import "time"

type LogStatus string

const (
	LogCompleted LogStatus = "completed"
	LogSkipped   LogStatus = "skipped"
)

// HabitLog records what happened to a habit on a single day. There is at
// most one log per (HabitID, Date); writing another one replaces it.
type HabitLog struct {
	ID          string     `json:"id"`
	HabitID     string     `json:"habit_id"`
	Date        string     `json:"date"` // YYYY-MM-DD format
	Status      LogStatus  `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Key returns the (habit, day) identity of the log.
func (l HabitLog) Key() string {
	return LogKey(l.HabitID, l.Date)
}

// LogKey builds the identity used to enforce one log per habit per day.
func LogKey(habitID, date string) string {
	return habitID + "_" + date
}

// LogIndex maps habit id -> date -> status for fast lookups during
// progress computation.
type LogIndex map[string]map[string]LogStatus

func NewLogIndex(logs []HabitLog) LogIndex {
	idx := make(LogIndex)
	for _, l := range logs {
		days, ok := idx[l.HabitID]
		if !ok {
			days = make(map[string]LogStatus)
			idx[l.HabitID] = days
		}
		days[l.Date] = l.Status
	}
	return idx
}

// Status returns the log status for a habit on a day, if any.
func (idx LogIndex) Status(habitID, date string) (LogStatus, bool) {
	days, ok := idx[habitID]
	if !ok {
		return "", false
	}
	s, ok := days[date]
	return s, ok
}

// Completed reports whether the habit has a completed log on date.
func (idx LogIndex) Completed(habitID, date string) bool {
	s, ok := idx.Status(habitID, date)
	return ok && s == LogCompleted
}
