// Package postgres implements the record store on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/exercisetracker/internal/domain"
	"example.com/exercisetracker/internal/events"
	"example.com/exercisetracker/internal/observability"
)

// Repository provides Postgres-backed persistence for users, exercises and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateUser inserts the user and its outbox event inside a single transaction.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `INSERT INTO users (username, created_at) VALUES ($1, $2) RETURNING user_id`,
		user.Username, user.CreatedAt)
	if err := row.Scan(&user.ID); err != nil {
		return domain.User{}, err
	}

	if err := insertOutbox(ctx, tx, "user", user.ID, events.TypeUserCreated, events.UserCreated{
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	}); err != nil {
		return domain.User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// ListUsers returns users in creation order.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, username, created_at FROM users ORDER BY created_at, user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser retrieves a user by ID.
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT user_id, username, created_at FROM users WHERE user_id=$1`, userID)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// CreateExercise persists the exercise and records an outbox event. The owner
// row is share-locked so a concurrent bulk-clear cannot orphan the insert.
func (r *Repository) CreateExercise(ctx context.Context, exercise domain.Exercise) (domain.Exercise, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Exercise{}, err
	}
	defer tx.Rollback(ctx)

	var owner string
	if err := tx.QueryRow(ctx, `SELECT user_id FROM users WHERE user_id=$1 FOR SHARE`, exercise.UserID).Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Exercise{}, domain.ErrUserNotFound
		}
		return domain.Exercise{}, err
	}

	const insertExercise = `INSERT INTO exercises (user_id, description, duration_min, exercise_date, created_at)
        VALUES ($1,$2,$3,$4,$5) RETURNING exercise_id`

	if err := tx.QueryRow(ctx, insertExercise,
		exercise.UserID,
		exercise.Description,
		exercise.DurationMin,
		exercise.Date,
		exercise.CreatedAt,
	).Scan(&exercise.ID); err != nil {
		return domain.Exercise{}, err
	}

	if err := insertOutbox(ctx, tx, "exercise", exercise.ID, events.TypeExerciseLogged, events.ExerciseLogged{
		ExerciseID:  exercise.ID,
		UserID:      exercise.UserID,
		Description: exercise.Description,
		DurationMin: exercise.DurationMin,
		Date:        exercise.Date.Format("2006-01-02"),
		CreatedAt:   exercise.CreatedAt,
	}); err != nil {
		return domain.Exercise{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Exercise{}, err
	}
	observability.RecordExercisePersisted(exercise.CreatedAt)
	return exercise, nil
}

// FindExercises returns the exercises selected by filter ordered by date.
func (r *Repository) FindExercises(ctx context.Context, filter domain.LogFilter) ([]domain.Exercise, error) {
	query, args := buildExerciseQuery(filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Exercise, 0)
	for rows.Next() {
		var ex domain.Exercise
		if err := rows.Scan(&ex.ID, &ex.UserID, &ex.Description, &ex.DurationMin, &ex.Date, &ex.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteAll clears both tables in one transaction. Users go first so that an
// in-flight CreateExercise either finishes before the clear or sees no owner.
func (r *Repository) DeleteAll(ctx context.Context) (domain.ClearResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.ClearResult{}, err
	}
	defer tx.Rollback(ctx)

	users, err := tx.Exec(ctx, `DELETE FROM users`)
	if err != nil {
		return domain.ClearResult{}, err
	}
	exercises, err := tx.Exec(ctx, `DELETE FROM exercises`)
	if err != nil {
		return domain.ClearResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ClearResult{}, err
	}
	return domain.ClearResult{
		DeletedUsers:     users.RowsAffected(),
		DeletedExercises: exercises.RowsAffected(),
	}, nil
}

// buildExerciseQuery renders the filter as SQL. Each bound adds its own
// predicate so from and to always apply together.
func buildExerciseQuery(filter domain.LogFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT exercise_id, user_id, description, duration_min, exercise_date, created_at
        FROM exercises WHERE user_id=$1`)
	args := []any{filter.UserID}

	if filter.From != nil {
		args = append(args, *filter.From)
		fmt.Fprintf(&sb, ` AND exercise_date >= $%d`, len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		fmt.Fprintf(&sb, ` AND exercise_date <= $%d`, len(args))
	}

	sb.WriteString(` ORDER BY exercise_date ASC, created_at ASC, exercise_id ASC`)

	if filter.Capped() {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}
	return sb.String(), args
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s", aggregateID, eventType)

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		aggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(payload),
		body,
		dedupeKey,
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(payload any) string
}

// Events for one user share a partition key so consumers see them in order.
var eventCatalog = map[string]EventMetadata{
	events.TypeUserCreated: {
		Topic:         events.TopicUserEvents,
		SchemaSubject: events.TopicUserEvents + "-value",
		PartitionKeyFn: func(p any) string {
			return p.(events.UserCreated).UserID
		},
	},
	events.TypeExerciseLogged: {
		Topic:         events.TopicExerciseEvents,
		SchemaSubject: events.TopicExerciseEvents + "-value",
		PartitionKeyFn: func(p any) string {
			return p.(events.ExerciseLogged).UserID
		},
	},
}
