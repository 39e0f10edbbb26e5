// Package memory provides an in-process store for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"example.com/exercisetracker/internal/domain"
)

// Repository stores users and exercises in memory.
type Repository struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	userOrder []string
	exercises []domain.Exercise
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{users: make(map[string]domain.User)}
}

// CreateUser implements domain.Repository.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.ID = uuid.NewString()
	r.users[user.ID] = user
	r.userOrder = append(r.userOrder, user.ID)
	return user, nil
}

// ListUsers implements domain.Repository.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.User, 0, len(r.userOrder))
	for _, id := range r.userOrder {
		out = append(out, r.users[id])
	}
	return out, nil
}

// GetUser implements domain.Repository.
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// CreateExercise implements domain.Repository. The owner check and the insert
// happen under the same lock.
func (r *Repository) CreateExercise(ctx context.Context, exercise domain.Exercise) (domain.Exercise, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[exercise.UserID]; !ok {
		return domain.Exercise{}, domain.ErrUserNotFound
	}
	exercise.ID = uuid.NewString()
	r.exercises = append(r.exercises, exercise)
	return exercise, nil
}

// FindExercises implements domain.Repository.
func (r *Repository) FindExercises(ctx context.Context, filter domain.LogFilter) ([]domain.Exercise, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]domain.Exercise, 0)
	for _, ex := range r.exercises {
		if filter.Matches(ex) {
			results = append(results, ex)
		}
	}
	// Stable sort keeps insertion order for exercises on the same date.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Date.Before(results[j].Date)
	})
	if filter.Capped() && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// DeleteAll implements domain.Repository.
func (r *Repository) DeleteAll(ctx context.Context) (domain.ClearResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := domain.ClearResult{
		DeletedUsers:     int64(len(r.users)),
		DeletedExercises: int64(len(r.exercises)),
	}
	r.users = make(map[string]domain.User)
	r.userOrder = nil
	r.exercises = nil
	return result, nil
}
