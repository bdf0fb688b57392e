package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsCountsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Observe("POST", "/api/v1/issues", 201, 20*time.Millisecond)
	m.Observe("POST", "/api/v1/issues", 201, 30*time.Millisecond)
	m.Observe("POST", "/api/v1/issues", 400, time.Millisecond)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/v1/issues", "201")); got != 2 {
		t.Fatalf("expected 2 created requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/v1/issues", "400")); got != 1 {
		t.Fatalf("expected 1 bad request, got %v", got)
	}
}

func TestHTTPMetricsNilSafe(t *testing.T) {
	var m *HTTPMetrics
	m.Observe("GET", "/", 200, time.Millisecond)
	NewHTTPMetrics(nil).Observe("GET", "/", 200, time.Millisecond)
}
