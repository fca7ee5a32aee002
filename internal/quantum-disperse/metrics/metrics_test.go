package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTransactionCounter(t *testing.T) {
	m := New()
	m.Transaction("approve", "success")
	m.Transaction("approve", "success")
	m.Transaction("disperse", "user_rejected")

	if got := testutil.ToFloat64(m.transactions.WithLabelValues("approve", "success")); got != 2 {
		t.Fatalf("expected 2 approvals, got %v", got)
	}
	if got := testutil.ToFloat64(m.transactions.WithLabelValues("disperse", "user_rejected")); got != 1 {
		t.Fatalf("expected 1 rejected disperse, got %v", got)
	}
}

func TestSessionsGauge(t *testing.T) {
	m := New()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	if got := testutil.ToFloat64(m.activeSessions); got != 1 {
		t.Fatalf("expected 1 active session, got %v", got)
	}
}

func TestStaleResultsExposition(t *testing.T) {
	m := New()
	m.StaleResult("assets")

	expected := `
# HELP quantum_disperse_stale_results_total Chain results discarded because a newer request superseded them.
# TYPE quantum_disperse_stale_results_total counter
quantum_disperse_stale_results_total{component="assets"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "quantum_disperse_stale_results_total"); err != nil {
		t.Fatalf("unexpected exposition: %v", err)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Transaction("approve", "success")
	m.BatchSubmitted(3)
	m.SessionOpened()
	m.SessionClosed()
	m.StaleResult("allowance")
	if m.Handler() == nil {
		t.Fatalf("expected a handler")
	}
}
