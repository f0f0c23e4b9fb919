package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsUsePrivateRegistry(t *testing.T) {
	first := NewMetrics()
	second := NewMetrics()

	first.RecordRequest("/health/live", "GET", 200, 5*time.Millisecond)
	first.RecordError("/tenants/:tenantId/invoices/:invoiceId/status", "POST", "CONFLICT")
	first.NotificationPublished("local")
	first.NotificationDropped("local")

	if got := testutil.ToFloat64(first.requestCount.WithLabelValues("/health/live", "GET", "200")); got != 1 {
		t.Fatalf("request count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(first.notifications.WithLabelValues("local", "dropped")); got != 1 {
		t.Fatalf("dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(second.requestCount.WithLabelValues("/health/live", "GET", "200")); got != 0 {
		t.Fatalf("second registry leaked count %v", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "NOT_FOUND")
	m.NotificationPublished("redis")
	m.NotificationDropped("redis")
}
