package domain

import "time"

// Exercise is a single logged workout. UserID references the owning User by
// identifier only.
type Exercise struct {
	ID          string
	UserID      string
	Description string
	DurationMin int
	Date        time.Time
	CreatedAt   time.Time
}

// ClearResult reports how many records a bulk-clear removed.
type ClearResult struct {
	DeletedUsers     int64
	DeletedExercises int64
}
