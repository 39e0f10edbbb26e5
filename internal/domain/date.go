package domain

import (
	"strings"
	"time"
)

// DisplayDateLayout renders calendar dates as "Tue Jan 10 2023".
const DisplayDateLayout = "Mon Jan 02 2006"

const isoDateLayout = "2006-01-02"

// ParseDate reads a calendar date from caller-supplied text. Both
// "2006-01-02" and RFC 3339 timestamps are accepted; the result is the UTC
// calendar date at midnight.
func ParseDate(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if t, err := time.Parse(isoDateLayout, text); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, text)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a stored date for API responses.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DisplayDateLayout)
}
