package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// DLQWriter persists failed events for investigation and replay.
type DLQWriter struct {
	baseDelay time.Duration
}

// NewDLQWriter initialises a writer. baseDelay seeds the backoff applied to
// events that already went through at least one replay.
func NewDLQWriter(baseDelay time.Duration) *DLQWriter {
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return &DLQWriter{baseDelay: baseDelay}
}

// Write records a failed outbox message in the DLQ alongside the supplied
// reason. The message's replay count becomes the entry's retry_count, so a
// first failure is due at once and later ones back off exponentially. The
// caller owns tx so the copy commits with the outbox update.
func (w *DLQWriter) Write(ctx context.Context, tx pgx.Tx, msg Message, reason string) error {
	var delay time.Duration
	if msg.Attempts > 0 {
		delay = backoffDelay(w.baseDelay, msg.Attempts)
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count, last_attempt_at, next_retry_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, NOW(), NOW() + $11::interval)`,
		msg.EventID, msg.EventType, msg.Topic, msg.Payload, reason, msg.AggregateType, msg.AggregateID, msg.SchemaSubject, msg.PartitionKey, msg.Attempts, delay,
	)
	return err
}

// backoffDelay calculates exponential backoff from base, capped at one hour.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		return time.Hour
	}
	delay := time.Duration(1<<uint(attempt-1)) * base
	if delay > time.Hour {
		delay = time.Hour
	}
	return delay
}
