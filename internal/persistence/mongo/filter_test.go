package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"example.com/exercisetracker/internal/domain"
)

func TestExerciseFilter(t *testing.T) {
	from := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2023, time.January, 31, 0, 0, 0, 0, time.UTC)

	require.Equal(t, bson.M{"userId": "u1"}, exerciseFilter(domain.LogFilter{UserID: "u1"}))

	require.Equal(t,
		bson.M{"userId": "u1", "date": bson.M{"$gte": from}},
		exerciseFilter(domain.LogFilter{UserID: "u1", From: &from}),
	)

	require.Equal(t,
		bson.M{"userId": "u1", "date": bson.M{"$gte": from, "$lte": to}},
		exerciseFilter(domain.LogFilter{UserID: "u1", From: &from, To: &to}),
	)
}
