//go:build integration

package consumer

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"example.com/exercisetracker/internal/outbox"
)

func TestProcessorReadsFramedRecordsFromKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker, err := kafkacontainer.Run(ctx, "confluentinc/confluent-local:7.5.0", kafkacontainer.WithClusterID("exercise-tracker"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = broker.Terminate(context.Background()) })

	brokers, err := broker.Brokers(ctx)
	require.NoError(t, err)

	const topic = "exercise_events"
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	require.NoError(t, err)
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
	require.NoError(t, conn.Close())

	payload := []byte(`{"exercise_id":"e-1","user_id":"u-1"}`)
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], 17)
	copy(value[5:], payload)

	producer := outbox.NewKafkaProducer(brokers)
	defer producer.Close()
	require.NoError(t, producer.WriteMessages(ctx, topic, kafka.Message{
		Key:   []byte("u-1"),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("exercise.logged")},
			{Key: "schema_subject", Value: []byte("exercise_events-value")},
		},
	}))

	reader := NewKafkaReader(brokers, "exercise-tracker-test", topic)
	defer reader.Close()

	handler := &recordingHandler{received: make(chan Message, 1)}
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- NewProcessor(reader, handler).Run(runCtx) }()

	select {
	case msg := <-handler.received:
		require.Equal(t, "exercise.logged", msg.EventType)
		require.Equal(t, "u-1", msg.UserID)
		require.Equal(t, 17, msg.SchemaID)
		require.JSONEq(t, string(payload), string(msg.Payload))
	case <-ctx.Done():
		t.Fatal("timed out waiting for kafka record")
	}

	stop()
	<-done
}

type recordingHandler struct {
	once     sync.Once
	received chan Message
}

func (h *recordingHandler) Handle(_ context.Context, msg Message) error {
	h.once.Do(func() { h.received <- msg })
	return nil
}
