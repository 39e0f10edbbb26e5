package api

import "example.com/exercisetracker/internal/domain"

// UserView is the public shape of a user.
type UserView struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

// ExerciseView is returned after logging an exercise.
type ExerciseView struct {
	ID          string `json:"_id"`
	Username    string `json:"username"`
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	Date        string `json:"date"`
}

// LogEntryView is one item of a user's log.
type LogEntryView struct {
	Description string `json:"description"`
	Duration    int    `json:"duration"`
	Date        string `json:"date"`
}

// LogView packages a user's filtered exercise log.
type LogView struct {
	ID       string         `json:"_id"`
	Username string         `json:"username"`
	Count    int            `json:"count"`
	Log      []LogEntryView `json:"log"`
}

// ClearView reports the outcome of a bulk-clear.
type ClearView struct {
	DeletedUsers     int64 `json:"deletedUsers"`
	DeletedExercises int64 `json:"deletedExercises"`
}

func toUserView(u domain.User) UserView {
	return UserView{ID: u.ID, Username: u.Username}
}

func toLogView(l domain.ExerciseLog) LogView {
	entries := make([]LogEntryView, 0, len(l.Log))
	for _, e := range l.Log {
		entries = append(entries, LogEntryView{
			Description: e.Description,
			Duration:    e.Duration,
			Date:        domain.FormatDate(e.Date),
		})
	}
	return LogView{
		ID:       l.UserID,
		Username: l.Username,
		Count:    l.Count,
		Log:      entries,
	}
}
