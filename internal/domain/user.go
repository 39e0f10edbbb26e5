package domain

import "time"

// User owns a log of exercises.
type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
}
