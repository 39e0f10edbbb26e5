package domain

import "time"

// LogEntry is the public projection of an Exercise.
type LogEntry struct {
	Description string
	Duration    int
	Date        time.Time
}

// ExerciseLog is a user's identity together with the exercises that matched
// a LogFilter. Count always equals len(Log).
type ExerciseLog struct {
	UserID   string
	Username string
	Count    int
	Log      []LogEntry
}

// AssembleLog maps exercises into log entries for user.
func AssembleLog(user User, exercises []Exercise) ExerciseLog {
	entries := make([]LogEntry, 0, len(exercises))
	for _, ex := range exercises {
		entries = append(entries, LogEntry{
			Description: ex.Description,
			Duration:    ex.DurationMin,
			Date:        ex.Date,
		})
	}
	return ExerciseLog{
		UserID:   user.ID,
		Username: user.Username,
		Count:    len(entries),
		Log:      entries,
	}
}

// LoggedExercise is returned after an exercise is recorded for a user.
type LoggedExercise struct {
	UserID      string
	Username    string
	ExerciseID  string
	Description string
	Duration    int
	Date        time.Time
}
