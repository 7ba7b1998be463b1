package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	m := New()
	m.Dispatched.WithLabelValues("complete", "ok").Inc()
	m.Alarms.WithLabelValues("urgent").Add(2)

	if want, have := 2.0, testutil.ToFloat64(m.Alarms.WithLabelValues("urgent")); want != have {
		t.Errorf("alarms: want: %v, have: %v", want, have)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `piecework_form_dispatched_total{action="complete",outcome="ok"} 1`) {
		t.Errorf("dispatched counter not exposed:\n%s", rec.Body.String())
	}
}
