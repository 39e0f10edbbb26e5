package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDateAcceptsCalendarAndTimestamp(t *testing.T) {
	d, err := ParseDate("2023-01-10")
	require.NoError(t, err)
	require.Equal(t, time.Date(2023, time.January, 10, 0, 0, 0, 0, time.UTC), d)

	ts, err := ParseDate("2023-01-10T18:45:00Z")
	require.NoError(t, err)
	require.Equal(t, d, ts)

	_, err = ParseDate("10/01/2023")
	require.Error(t, err)
}

func TestFormatDate(t *testing.T) {
	require.Equal(t, "Tue Jan 10 2023", FormatDate(time.Date(2023, time.January, 10, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "Tue Jan 03 2023", FormatDate(time.Date(2023, time.January, 3, 0, 0, 0, 0, time.UTC)))
}
