package domain

import (
	"strconv"
	"strings"
	"time"
)

// NoLimit marks a LogFilter without a result cap.
const NoLimit = -1

// LogParams holds the raw, optional log query inputs as received from callers.
type LogParams struct {
	From  string
	To    string
	Limit string
}

// LogFilter selects one user's exercises. From and To are inclusive calendar
// dates and apply together when both are set.
type LogFilter struct {
	UserID string
	From   *time.Time
	To     *time.Time
	Limit  int
}

// NewLogFilter translates raw query inputs into a filter for userID.
// Unparseable dates or limits are rejected with a *ValidationError.
func NewLogFilter(userID string, params LogParams) (LogFilter, error) {
	filter := LogFilter{UserID: userID, Limit: NoLimit}

	if raw := strings.TrimSpace(params.From); raw != "" {
		from, err := ParseDate(raw)
		if err != nil {
			return LogFilter{}, invalid("from", "must be a date (YYYY-MM-DD)")
		}
		filter.From = &from
	}

	if raw := strings.TrimSpace(params.To); raw != "" {
		to, err := ParseDate(raw)
		if err != nil {
			return LogFilter{}, invalid("to", "must be a date (YYYY-MM-DD)")
		}
		filter.To = &to
	}

	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return LogFilter{}, invalid("from", "must not be after to")
	}

	if raw := strings.TrimSpace(params.Limit); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return LogFilter{}, invalid("limit", "must be a non-negative integer")
		}
		filter.Limit = limit
	}

	return filter, nil
}

// Capped reports whether the filter limits the number of results.
func (f LogFilter) Capped() bool {
	return f.Limit != NoLimit
}

// Matches reports whether ex satisfies the owner and date constraints.
// The limit is applied by the caller after ordering.
func (f LogFilter) Matches(ex Exercise) bool {
	if ex.UserID != f.UserID {
		return false
	}
	date := DateOf(ex.Date)
	if f.From != nil && date.Before(*f.From) {
		return false
	}
	if f.To != nil && date.After(*f.To) {
		return false
	}
	return true
}
