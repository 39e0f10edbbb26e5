package observability

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveHTTPRequestCountsByRoute(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET /api/users", "GET", "200"))

	ObserveHTTPRequest("GET /api/users", "GET", 200, 5*time.Millisecond)

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET /api/users", "GET", "200"))
	require.InDelta(t, before+1, after, 0.0001)
}

func TestRecordExercisePersistedIgnoresZero(t *testing.T) {
	ts := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
	RecordExercisePersisted(ts)
	RecordExercisePersisted(time.Time{})

	require.InDelta(t, float64(ts.Unix()), testutil.ToFloat64(exercisePersistGauge), 0.0001)
}

func TestInitTracingWithoutEndpointIsNoop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	shutdown, err := InitTracing(context.Background(), logger, "", "exercise-tracker", "test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
