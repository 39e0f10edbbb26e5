package outbox

import (
	"github.com/prometheus/client_golang/prometheus"

	"example.com/exercisetracker/internal/events"
)

var (
	deliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exercise_tracker",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Number of outbox events successfully published to Kafka, labeled by event type.",
	}, []string{"event_type"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exercise_tracker",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Number of outbox events that failed to publish and were routed to the DLQ, labeled by event type.",
	}, []string{"event_type"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "exercise_tracker",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent fetching, delivering, and marking outbox batches.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exercise_tracker",
		Subsystem: "outbox",
		Name:      "events_dlq_total",
		Help:      "Number of outbox events routed to the dead-letter queue.",
	}, []string{"topic", "event_type"})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, batchDuration, dlqCounter)

	// Known event types export zero-valued series before the first delivery.
	for eventType, topic := range events.Catalog {
		deliveredCounter.WithLabelValues(eventType)
		failedCounter.WithLabelValues(eventType)
		dlqCounter.WithLabelValues(topic, eventType)
	}
}

func recordDelivered(msg Message) {
	deliveredCounter.WithLabelValues(msg.EventType).Inc()
}

func recordFailed(msg Message) {
	failedCounter.WithLabelValues(msg.EventType).Inc()
	dlqCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}
