package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox publish results.
const (
	OutboxPublished  = "published"
	OutboxRetried    = "retried"
	OutboxDeadLetter = "dead_letter"
)

// OutboxMetrics tracks the outbox publisher. A nil value is a no-op.
type OutboxMetrics struct {
	results *prometheus.CounterVec
	latency prometheus.Histogram
	batch   prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return nil
	}
	m := &OutboxMetrics{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox rows handled by the publisher, by event type and result.",
		}, []string{"event_type", "result"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_seconds",
			Help:      "Time from publish call to broker ack.",
			Buckets:   prometheus.DefBuckets,
		}),
		batch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_rows",
			Help:      "Rows claimed per publisher batch.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
	}
	reg.MustRegister(m.results, m.latency, m.batch)
	return m
}

func (m *OutboxMetrics) Count(eventType, result string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.results.WithLabelValues(eventType, result).Inc()
}

func (m *OutboxMetrics) ObservePublish(d time.Duration) {
	if m == nil {
		return
	}
	m.latency.Observe(d.Seconds())
}

func (m *OutboxMetrics) ObserveBatch(rows int) {
	if m == nil {
		return
	}
	m.batch.Observe(float64(rows))
}
