package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutboxMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.IncPublished("assign_accepted")
	m.IncPublished("assign_accepted")
	m.IncRetried("assigned_created")
	m.IncDeadLettered("assigned_created", "max_attempts")
	m.IncDeadLettered("", "")

	if got := testutil.ToFloat64(m.published.WithLabelValues("assign_accepted")); got != 2 {
		t.Fatalf("expected 2 published, got %v", got)
	}
	if got := testutil.ToFloat64(m.retried.WithLabelValues("assigned_created")); got != 1 {
		t.Fatalf("expected 1 retry, got %v", got)
	}
	if got := testutil.ToFloat64(m.dead.WithLabelValues("unknown", "unknown")); got != 1 {
		t.Fatalf("expected unlabeled dead letter under unknown, got %v", got)
	}
}

func TestOutboxMetricsNilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.IncPublished("x")
	NewOutboxMetrics(nil).IncDeadLettered("x", "y")
}
