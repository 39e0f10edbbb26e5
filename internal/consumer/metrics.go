package consumer

import (
	"github.com/prometheus/client_golang/prometheus"

	"example.com/exercisetracker/internal/events"
)

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exercise_tracker",
		Subsystem: "consumer",
		Name:      "messages_processed_total",
		Help:      "Number of Kafka messages successfully handled.",
	}, []string{"topic", "event_type"})

	attemptFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exercise_tracker",
		Subsystem: "consumer",
		Name:      "handler_attempt_failures_total",
		Help:      "Number of failed handler attempts, including ones that later succeeded on retry.",
	}, []string{"topic", "event_type"})

	haltedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exercise_tracker",
		Subsystem: "consumer",
		Name:      "halted_total",
		Help:      "Number of times a consumer stopped on a message its handler rejected after every retry.",
	}, []string{"topic", "event_type"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exercise_tracker",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Number of decode failures per topic.",
	}, []string{"topic"})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "exercise_tracker",
		Subsystem: "consumer",
		Name:      "last_message_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successfully processed message per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(processedCounter, attemptFailureCounter, haltedCounter, decodeErrorCounter, lastMessageGauge)

	for eventType, topic := range events.Catalog {
		processedCounter.WithLabelValues(topic, eventType)
		attemptFailureCounter.WithLabelValues(topic, eventType)
		haltedCounter.WithLabelValues(topic, eventType)
	}
}

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
	if !msg.Timestamp.IsZero() {
		lastMessageGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
}

func recordAttemptFailure(msg Message) {
	attemptFailureCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}

func recordHalted(msg Message) {
	haltedCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}
