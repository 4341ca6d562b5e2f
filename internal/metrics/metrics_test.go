package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hamed0406/sitewatch/internal/domain"
)

func TestMetrics_CountersAndHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveProbe(domain.StatusAvailable, 12)
	m.ObserveProbe(domain.StatusError, 1000)
	m.ObserveProbe(domain.StatusError, 1000)
	m.ObserveTransition(domain.StatusUnavailable)
	m.ObserveAppendError()
	m.ObserveCycle(300 * time.Millisecond)
	m.ObserveReport("no_data")

	if got := testutil.ToFloat64(m.probesTotal.WithLabelValues("error")); got != 2 {
		t.Fatalf("want 2 error probes, got %v", got)
	}
	if got := testutil.ToFloat64(m.transitionsTotal.WithLabelValues("unavailable")); got != 1 {
		t.Fatalf("want 1 transition, got %v", got)
	}
	if got := testutil.ToFloat64(m.appendErrorsTotal); got != 1 {
		t.Fatalf("want 1 append error, got %v", got)
	}

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), `sitewatch_reports_total{result="no_data"} 1`) {
		t.Fatalf("exposition missing reports counter:\n%s", body)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveProbe(domain.StatusAvailable, 1)
	m.ObserveTransition(domain.StatusAvailable)
	m.ObserveAppendError()
	m.ObserveCycle(time.Second)
	m.ObserveReport("ok")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	if rr.Code != 404 {
		t.Fatalf("want 404 from nil metrics handler, got %d", rr.Code)
	}
}
