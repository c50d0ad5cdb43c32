package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPaymentMetricsExportsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)

	m.IncOutcome("confirm", "completed")
	m.IncOutcome("confirm", "completed")
	m.ObserveGatewayCall("create_intent", 120*time.Millisecond, nil)
	m.ObserveGatewayCall("create_intent", 80*time.Millisecond, errors.New("timeout"))
	m.AddPayouts("approve", 2, 1)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "driplo_payments_outcomes_total", "outcome", "completed"); err != nil {
		t.Fatalf("fetch outcomes: %v", err)
	} else if got != 2 {
		t.Fatalf("expected 2 completed confirms, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "driplo_payouts_processed_total", "result", "failed"); err != nil {
		t.Fatalf("fetch payouts: %v", err)
	} else if got != 1 {
		t.Fatalf("expected 1 failed payout, got %f", got)
	}

	mf := findMetricFamily(mfs, "driplo_payments_gateway_call_seconds")
	if mf == nil {
		t.Fatal("gateway histogram missing")
	}
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected ok and error series, got %d", len(mf.GetMetric()))
	}
	var total uint64
	for _, metric := range mf.GetMetric() {
		total += metric.GetHistogram().GetSampleCount()
	}
	if total != 2 {
		t.Fatalf("expected 2 observations, got %d", total)
	}
}

func TestNilPaymentMetricsIsSafe(t *testing.T) {
	var m *PaymentMetrics
	m.IncOutcome("create", "ok")
	m.ObserveGatewayCall("confirm", time.Second, nil)
	m.AddPayouts("reject", 1, 0)

	unregistered := NewPaymentMetrics(nil)
	unregistered.IncOutcome("create", "ok")
}

func TestPaymentMetricsLabelsEmptyValuesUnknown(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)

	m.IncOutcome("", "")
	m.AddPayouts("", 1, 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "driplo_payments_outcomes_total", "outcome", "unknown"); err != nil {
		t.Fatalf("fetch outcomes: %v", err)
	} else if got != 1 {
		t.Fatalf("expected 1 unknown outcome, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "driplo_payouts_processed_total", "action", "unknown"); err != nil {
		t.Fatalf("fetch payouts: %v", err)
	} else if got != 1 {
		t.Fatalf("expected 1 payout under unknown action, got %f", got)
	}
}
