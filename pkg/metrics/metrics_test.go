package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersIndependently(t *testing.T) {
	a := New(nil)
	b := New(prometheus.NewRegistry())
	a.EntriesTotal.Add(3)
	if got := testutil.ToFloat64(a.EntriesTotal); got != 3 {
		t.Errorf("a entries = %v", got)
	}
	if got := testutil.ToFloat64(b.EntriesTotal); got != 0 {
		t.Errorf("b entries = %v, registries must not share collectors", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(nil)
	m.RecordsTotal.WithLabelValues("ok").Inc()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `forum_index_records_total{status="ok"} 1`) {
		t.Errorf("scrape output missing records counter:\n%s", body)
	}
}
