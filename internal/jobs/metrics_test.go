package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if err := m.Track("report:generate").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	boom := errors.New("boom")
	if err := m.Track("report:generate").End(boom); !errors.Is(err, boom) {
		t.Fatalf("expected error passthrough, got %v", err)
	}

	if got := counterValue(t, reg, "crewstay_jobs_total", map[string]string{"job": "report:generate", "status": "success"}); got != 1 {
		t.Fatalf("success runs = %v", got)
	}
	if got := counterValue(t, reg, "crewstay_jobs_failures_total", map[string]string{"job": "report:generate"}); got != 1 {
		t.Fatalf("failures = %v", got)
	}
}

func TestAllocationIssues(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.AddAllocationIssues("", 2, 0)
	m.AddAllocationIssues("hotel", 0, 3)

	if got := counterValue(t, reg, "crewstay_allocation_skipped_records_total", map[string]string{"kind": "unknown"}); got != 2 {
		t.Fatalf("skipped = %v", got)
	}
	if got := counterValue(t, reg, "crewstay_allocation_unresolved_prices_total", map[string]string{"kind": "hotel"}); got != 3 {
		t.Fatalf("unresolved = %v", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddAllocationIssues("airline", 1, 1)
	if err := m.Track("x").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
