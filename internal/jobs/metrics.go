// Package jobmetrics instruments background jobs and report builds.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs       *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	skipped    *prometheus.CounterVec
	unresolved *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddAllocationIssues counts skipped input records and rows whose price could
// not be resolved for a report kind.
func (m *Metrics) AddAllocationIssues(kind string, skipped, unresolved int) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	if skipped > 0 {
		m.skipped.WithLabelValues(kind).Add(float64(skipped))
	}
	if unresolved > 0 {
		m.unresolved.WithLabelValues(kind).Add(float64(unresolved))
	}
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crewstay_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crewstay_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crewstay_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crewstay_allocation_skipped_records_total",
		Help: "Booking records dropped from allocations because of missing or invalid fields.",
	}, []string{"kind"})
	unresolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crewstay_allocation_unresolved_prices_total",
		Help: "Allocation rows emitted with an unresolved room or meal price.",
	}, []string{"kind"})
	registerer.MustRegister(runs, failures, duration, skipped, unresolved)
	return &Metrics{runs: runs, failures: failures, duration: duration, skipped: skipped, unresolved: unresolved}
}
