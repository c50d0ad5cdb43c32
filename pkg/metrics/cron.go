package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "driplo"

// CronJobMetrics tracks per-job outcomes for the cron worker. A nil value is a no-op.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	failures    *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	skipped     prometheus.Counter
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of each cron job run.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 180},
		}, []string{"job"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_failures_total",
			Help:      "Cron job runs that returned an error or panicked.",
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per job.",
		}, []string{"job"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "cycles_skipped_total",
			Help:      "Cycles skipped because another worker held the lock.",
		}),
	}
	reg.MustRegister(m.duration, m.failures, m.lastSuccess, m.skipped)
	return m
}

func (m *CronJobMetrics) ObserveDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(d.Seconds())
}

func (m *CronJobMetrics) IncFailure(job string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(job)).Inc()
}

// MarkSuccess stamps the last-success gauge so alerting can detect stalled jobs.
func (m *CronJobMetrics) MarkSuccess(job string, at time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.WithLabelValues(normalizeLabel(job)).Set(float64(at.Unix()))
}

func (m *CronJobMetrics) IncSkipped() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

// normalizeLabel keeps empty label values out of the series set.
func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
