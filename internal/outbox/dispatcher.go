// Package outbox delivers persisted domain events to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	"example.com/exercisetracker/internal/events"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Option configures optional behaviour for the Dispatcher.
type Option func(*Dispatcher)

// WithLogger overrides the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithRetryBackoff sets the base delay before a replayed event that failed
// again becomes due in the DLQ.
func WithRetryBackoff(base time.Duration) Option {
	return func(d *Dispatcher) {
		d.dlq = NewDLQWriter(base)
	}
}

// Dispatcher drains the outbox table and delivers events to Kafka using Schema Registry metadata.
type Dispatcher struct {
	pool             *pgxpool.Pool
	producer         messageWriter
	registry         schemaRegistrar
	dlq              *DLQWriter
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	schemaIDCache    sync.Map
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, pollInterval time.Duration, batchSize int, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		pool:             pool,
		producer:         producer,
		registry:         registry,
		dlq:              NewDLQWriter(time.Minute),
		logger:           slog.Default(),
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("outbox dispatcher error", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	start := time.Now()

	messages, err := d.fetchAndClaim(ctx)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	failures := d.deliver(ctx, messages)
	failed := make(map[int64]bool, len(failures))
	for _, f := range failures {
		failed[f.msg.EventID] = true
		recordFailed(f.msg)
	}
	for _, msg := range messages {
		if !failed[msg.EventID] {
			recordDelivered(msg)
		}
	}

	if len(failures) == 0 {
		return d.finish(ctx, messages, nil)
	}

	d.logger.Warn("outbox delivery failed",
		slog.Int("batch_size", len(messages)),
		slog.Int("failed", len(failures)),
		slog.String("error", failures[0].err.Error()),
	)
	return d.moveToDLQ(ctx, messages, failures)
}

func (d *Dispatcher) fetchAndClaim(ctx context.Context) ([]Message, error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Rows claimed recently by another dispatcher are skipped until the claim goes stale.
	const query = `SELECT event_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, attempts
        FROM outbox
        WHERE published_at IS NULL
          AND (claimed_at IS NULL OR claimed_at < NOW() - INTERVAL '5 minutes')
        ORDER BY event_id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, d.batchSize)
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.EventID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Topic, &msg.SchemaSubject, &msg.PartitionKey, &msg.Payload, &msg.Attempts); err != nil {
			rows.Close()
			return nil, err
		}
		messages = append(messages, msg)
		ids = append(ids, msg.EventID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return messages, nil
}

// deliveryFailure pairs an undelivered message with the error that stopped it.
type deliveryFailure struct {
	msg Message
	err error
}

// deliver publishes messages grouped by topic, preserving order within each
// topic. Only messages that did not reach Kafka are reported back; a failing
// topic does not stop delivery to the others.
func (d *Dispatcher) deliver(ctx context.Context, messages []Message) []deliveryFailure {
	var failures []deliveryFailure
	records := make(map[string][]kafka.Message)
	pending := make(map[string][]Message)
	order := make([]string, 0)

	for _, msg := range messages {
		record, err := d.encode(ctx, msg)
		if err != nil {
			failures = append(failures, deliveryFailure{msg: msg, err: err})
			continue
		}

		if _, exists := records[msg.Topic]; !exists {
			order = append(order, msg.Topic)
		}
		records[msg.Topic] = append(records[msg.Topic], record)
		pending[msg.Topic] = append(pending[msg.Topic], msg)
	}

	for _, topic := range order {
		err := d.producer.WriteMessages(ctx, topic, records[topic]...)
		if err == nil {
			continue
		}

		// The writer reports per-record errors when only part of a batch failed.
		var writeErrs kafka.WriteErrors
		if errors.As(err, &writeErrs) && len(writeErrs) == len(pending[topic]) {
			for i, writeErr := range writeErrs {
				if writeErr != nil {
					failures = append(failures, deliveryFailure{msg: pending[topic][i], err: writeErr})
				}
			}
			continue
		}
		for _, msg := range pending[topic] {
			failures = append(failures, deliveryFailure{msg: msg, err: err})
		}
	}

	return failures
}

func (d *Dispatcher) encode(ctx context.Context, msg Message) (kafka.Message, error) {
	schema, ok := schemaCatalog[msg.EventType]
	if !ok {
		return kafka.Message{}, fmt.Errorf("no schema metadata for event_type=%s", msg.EventType)
	}

	schemaID, err := d.schemaID(ctx, msg.SchemaSubject, schema)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(msg.PartitionKey),
		Value: encodeWireFormat(schemaID, msg.Payload),
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(msg.EventType)},
			{Key: "schema_subject", Value: []byte(msg.SchemaSubject)},
		},
	}, nil
}

func (d *Dispatcher) schemaID(ctx context.Context, subject, schema string) (int, error) {
	cacheKey := subject + "::" + schema
	if id, found := d.schemaIDCache.Load(cacheKey); found {
		return id.(int), nil
	}

	id, err := d.registry.EnsureSchema(ctx, subject, schema)
	if err != nil {
		return 0, err
	}
	d.schemaIDCache.Store(cacheKey, id)
	return id, nil
}

// moveToDLQ copies the failed messages into outbox_dlq and retires the whole
// batch from the outbox in one transaction.
func (d *Dispatcher) moveToDLQ(ctx context.Context, batch []Message, failures []deliveryFailure) error {
	return d.finish(ctx, batch, func(tx pgx.Tx) error {
		for _, f := range failures {
			reason := fmt.Sprintf("%s (topic=%s)", f.err.Error(), f.msg.Topic)
			if err := d.dlq.Write(ctx, tx, f.msg, reason); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Dispatcher) finish(ctx context.Context, messages []Message, before func(pgx.Tx) error) error {
	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.EventID)
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if before != nil {
		if err := before(tx); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Message represents a row fetched from outbox. Attempts counts how many times
// the DLQ has replayed the event.
type Message struct {
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
	Attempts      int
}

// encodeWireFormat applies Confluent framing for Schema Registry aware payloads.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}

var schemaCatalog = map[string]string{
	events.TypeUserCreated:    userCreatedSchema,
	events.TypeExerciseLogged: exerciseLoggedSchema,
}
