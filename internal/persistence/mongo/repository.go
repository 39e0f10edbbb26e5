// Package mongo implements the record store on MongoDB with separate users
// and exercises collections.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"example.com/exercisetracker/internal/domain"
	"example.com/exercisetracker/internal/observability"
)

const (
	usersCollection     = "users"
	exercisesCollection = "exercises"
)

type userDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Username  string             `bson:"username"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type exerciseDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	UserID      string             `bson:"userId"`
	Description string             `bson:"description"`
	Duration    int                `bson:"duration"`
	Date        time.Time          `bson:"date"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

// Repository stores users and exercises in a MongoDB database.
type Repository struct {
	users     *mongo.Collection
	exercises *mongo.Collection
}

// NewRepository constructs a Repository on db.
func NewRepository(db *mongo.Database) *Repository {
	return &Repository{
		users:     db.Collection(usersCollection),
		exercises: db.Collection(exercisesCollection),
	}
}

// EnsureIndexes creates the index backing log queries.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.exercises.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: 1}, {Key: "_id", Value: 1}},
	})
	return err
}

// CreateUser implements domain.Repository.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	doc := userDocument{
		ID:        primitive.NewObjectID(),
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	}
	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		return domain.User{}, err
	}
	user.ID = doc.ID.Hex()
	return user, nil
}

// ListUsers implements domain.Repository. ObjectIDs sort by creation time.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	cursor, err := r.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.toDomain())
	}
	return users, nil
}

// GetUser implements domain.Repository. Identifiers that are not valid
// ObjectIDs cannot exist and are reported as missing.
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, nil
	}

	var doc userDocument
	if err := r.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	user := doc.toDomain()
	return &user, nil
}

// CreateExercise implements domain.Repository. The owner check and insert are
// separate round trips; a bulk-clear in between leaves an orphan that the
// next clear removes.
func (r *Repository) CreateExercise(ctx context.Context, exercise domain.Exercise) (domain.Exercise, error) {
	owner, err := r.GetUser(ctx, exercise.UserID)
	if err != nil {
		return domain.Exercise{}, err
	}
	if owner == nil {
		return domain.Exercise{}, domain.ErrUserNotFound
	}

	doc := exerciseDocument{
		ID:          primitive.NewObjectID(),
		UserID:      exercise.UserID,
		Description: exercise.Description,
		Duration:    exercise.DurationMin,
		Date:        exercise.Date,
		CreatedAt:   exercise.CreatedAt,
	}
	if _, err := r.exercises.InsertOne(ctx, doc); err != nil {
		return domain.Exercise{}, err
	}

	observability.RecordExercisePersisted(exercise.CreatedAt)
	exercise.ID = doc.ID.Hex()
	return exercise, nil
}

// FindExercises implements domain.Repository.
func (r *Repository) FindExercises(ctx context.Context, filter domain.LogFilter) ([]domain.Exercise, error) {
	// Mongo reads a zero limit as "no limit".
	if filter.Capped() && filter.Limit == 0 {
		return []domain.Exercise{}, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Capped() {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.exercises.Find(ctx, exerciseFilter(filter), opts)
	if err != nil {
		return nil, err
	}

	var docs []exerciseDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	results := make([]domain.Exercise, 0, len(docs))
	for _, doc := range docs {
		results = append(results, doc.toDomain())
	}
	return results, nil
}

// DeleteAll implements domain.Repository.
func (r *Repository) DeleteAll(ctx context.Context) (domain.ClearResult, error) {
	users, err := r.users.DeleteMany(ctx, bson.M{})
	if err != nil {
		return domain.ClearResult{}, err
	}
	exercises, err := r.exercises.DeleteMany(ctx, bson.M{})
	if err != nil {
		return domain.ClearResult{}, err
	}
	return domain.ClearResult{
		DeletedUsers:     users.DeletedCount,
		DeletedExercises: exercises.DeletedCount,
	}, nil
}

// exerciseFilter builds the query document. Both bounds share one "date"
// sub-document so neither replaces the other.
func exerciseFilter(filter domain.LogFilter) bson.M {
	query := bson.M{"userId": filter.UserID}

	if filter.From != nil || filter.To != nil {
		date := bson.M{}
		if filter.From != nil {
			date["$gte"] = *filter.From
		}
		if filter.To != nil {
			date["$lte"] = *filter.To
		}
		query["date"] = date
	}
	return query
}

func (d userDocument) toDomain() domain.User {
	return domain.User{
		ID:        d.ID.Hex(),
		Username:  d.Username,
		CreatedAt: d.CreatedAt,
	}
}

func (d exerciseDocument) toDomain() domain.Exercise {
	return domain.Exercise{
		ID:          d.ID.Hex(),
		UserID:      d.UserID,
		Description: d.Description,
		DurationMin: d.Duration,
		Date:        d.Date.UTC(),
		CreatedAt:   d.CreatedAt,
	}
}
