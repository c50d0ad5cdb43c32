package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics counts checkout outcomes and times gateway calls.
type PaymentMetrics struct {
	outcomes *prometheus.CounterVec
	gateway  *prometheus.HistogramVec
	payouts  *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "outcomes_total",
		Help:      "Payment operations by outcome.",
	}, []string{"operation", "outcome"})
	gateway := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "gateway_call_seconds",
		Help:      "Latency of payment gateway calls.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"call", "result"})
	payouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payouts",
		Name:      "processed_total",
		Help:      "Payouts processed by admin batches.",
	}, []string{"action", "result"})
	reg.MustRegister(outcomes, gateway, payouts)
	return &PaymentMetrics{outcomes: outcomes, gateway: gateway, payouts: payouts}
}

// IncOutcome counts one payment operation result, e.g. ("confirm", "completed").
func (m *PaymentMetrics) IncOutcome(operation, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// ObserveGatewayCall records how long one gateway call took.
func (m *PaymentMetrics) ObserveGatewayCall(call string, duration time.Duration, err error) {
	if m == nil || m.gateway == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.gateway.WithLabelValues(normalizeLabel(call), result).Observe(duration.Seconds())
}

// AddPayouts counts successful and failed payouts from one batch.
func (m *PaymentMetrics) AddPayouts(action string, successful, failed int) {
	if m == nil || m.payouts == nil {
		return
	}
	label := normalizeLabel(action)
	if successful > 0 {
		m.payouts.WithLabelValues(label, "successful").Add(float64(successful))
	}
	if failed > 0 {
		m.payouts.WithLabelValues(label, "failed").Add(float64(failed))
	}
}
