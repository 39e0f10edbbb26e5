// Package domain defines the business logic for the exercise tracker.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository captures persistence operations. Lookups return (nil, nil) when
// the record does not exist; the store assigns identifiers on create.
type Repository interface {
	CreateUser(ctx context.Context, user User) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, userID string) (*User, error)
	// CreateExercise returns ErrUserNotFound if the owner no longer exists.
	CreateExercise(ctx context.Context, exercise Exercise) (Exercise, error)
	// FindExercises returns matches ordered by date, then creation order.
	FindExercises(ctx context.Context, filter LogFilter) ([]Exercise, error)
	DeleteAll(ctx context.Context) (ClearResult, error)
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the time source used to default exercise dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates user and exercise workflows.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUser registers a new user.
func (s *Service) CreateUser(ctx context.Context, username string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, invalid("username", "is required")
	}

	user, err := s.repo.CreateUser(ctx, User{
		Username:  username,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// ListUsers returns every user in creation order.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ResolveUser fetches a user by ID or returns ErrUserNotFound.
func (s *Service) ResolveUser(ctx context.Context, userID string) (*User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// LogExerciseInput captures the payload from the API layer. A nil Date means
// the exercise happened today.
type LogExerciseInput struct {
	UserID      string
	Description string
	DurationMin int
	Date        *time.Time
}

// LogExercise records an exercise for an existing user.
func (s *Service) LogExercise(ctx context.Context, input LogExerciseInput) (*LoggedExercise, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, invalid("description", "is required")
	}
	if input.DurationMin <= 0 {
		return nil, invalid("duration", "must be > 0")
	}

	user, err := s.ResolveUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	date := DateOf(now)
	if input.Date != nil {
		date = DateOf(*input.Date)
	}

	exercise, err := s.repo.CreateExercise(ctx, Exercise{
		UserID:      user.ID,
		Description: description,
		DurationMin: input.DurationMin,
		Date:        date,
		CreatedAt:   now,
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create exercise: %w", err)
	}

	return &LoggedExercise{
		UserID:      user.ID,
		Username:    user.Username,
		ExerciseID:  exercise.ID,
		Description: exercise.Description,
		Duration:    exercise.DurationMin,
		Date:        exercise.Date,
	}, nil
}

// ExerciseLog returns the user's exercises matching params. The exercise
// store is not touched when the user cannot be resolved.
func (s *Service) ExerciseLog(ctx context.Context, userID string, params LogParams) (*ExerciseLog, error) {
	filter, err := NewLogFilter(userID, params)
	if err != nil {
		return nil, err
	}

	user, err := s.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	filter.UserID = user.ID

	if filter.Limit == 0 {
		log := AssembleLog(*user, nil)
		return &log, nil
	}

	exercises, err := s.repo.FindExercises(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find exercises: %w", err)
	}
	if filter.Capped() && len(exercises) > filter.Limit {
		exercises = exercises[:filter.Limit]
	}

	log := AssembleLog(*user, exercises)
	return &log, nil
}

// ClearAll removes every exercise and user.
func (s *Service) ClearAll(ctx context.Context) (ClearResult, error) {
	result, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return ClearResult{}, fmt.Errorf("delete all: %w", err)
	}
	return result, nil
}
