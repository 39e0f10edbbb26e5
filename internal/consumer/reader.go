package consumer

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewKafkaReader builds a consumer-group reader for one topic. New groups
// start from the earliest offset so the audit log sees the full history.
func NewKafkaReader(brokers []string, groupID, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		GroupID:         groupID,
		Topic:           topic,
		MinBytes:        1,
		MaxBytes:        10e6,
		MaxWait:         500 * time.Millisecond,
		StartOffset:     kafka.FirstOffset,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})
}
