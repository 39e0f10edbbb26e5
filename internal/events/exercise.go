// Package events defines the payloads published through the outbox.
package events

import "time"

// Event types recorded in the outbox.
const (
	TypeUserCreated    = "user.created"
	TypeExerciseLogged = "exercise.logged"
)

// Kafka topics carrying each event family.
const (
	TopicUserEvents     = "user_events"
	TopicExerciseEvents = "exercise_events"
)

// Catalog maps every event type to the topic it is published on.
var Catalog = map[string]string{
	TypeUserCreated:    TopicUserEvents,
	TypeExerciseLogged: TopicExerciseEvents,
}

// UserCreated is emitted when a user is registered.
type UserCreated struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// ExerciseLogged is emitted when an exercise is recorded against a user.
type ExerciseLogged struct {
	ExerciseID  string    `json:"exercise_id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	DurationMin int       `json:"duration_min"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}
