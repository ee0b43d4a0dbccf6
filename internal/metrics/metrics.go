// Package metrics records Prometheus metrics for a fetch run.
//
// A run is a one-shot process, so metrics are not scraped; they can be written to a
// file in the text exposition format (node exporter textfile collector) once the run ends.
//
// Metrics:
//   - pr_stats_pages_fetched_total{result} (Counter): page requests by result (success, error)
//   - pr_stats_records_merged_total (Counter): pull requests merged into the record table
//   - pr_stats_records_skipped_total (Counter): pull requests dropped for missing fields
//   - pr_stats_page_fetch_duration_seconds (Histogram): duration of single page requests
//   - pr_stats_fetch_duration_seconds (Gauge): wall-clock duration of the last complete fetch
//   - pr_stats_queue_enqueued_pages (Gauge): page tasks enqueued for workers in the last fetch
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the collectors of a fetch run.
type Recorder struct {
	registry       *prometheus.Registry
	pagesFetched   *prometheus.CounterVec
	recordsMerged  prometheus.Counter
	recordsSkipped prometheus.Counter
	pageDuration   prometheus.Histogram
	fetchDuration  prometheus.Gauge
	enqueued       prometheus.Gauge
}

// NewRecorder creates a Recorder whose collectors are registered on registry.
func NewRecorder(registry *prometheus.Registry) *Recorder {
	r := &Recorder{
		registry: registry,
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pr_stats_pages_fetched_total",
			Help: "Total page requests by result",
		}, []string{"result"}),
		recordsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pr_stats_records_merged_total",
			Help: "Total pull requests merged into the record table",
		}),
		recordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pr_stats_records_skipped_total",
			Help: "Total pull requests dropped because required fields were missing",
		}),
		pageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pr_stats_page_fetch_duration_seconds",
			Help:    "Page request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		fetchDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pr_stats_fetch_duration_seconds",
			Help: "Wall-clock duration of the last complete fetch in seconds",
		}),
		enqueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pr_stats_queue_enqueued_pages",
			Help: "Page tasks enqueued for workers in the last fetch",
		}),
	}
	registry.MustRegister(r.pagesFetched, r.recordsMerged, r.recordsSkipped, r.pageDuration, r.fetchDuration, r.enqueued)
	return r
}

// ObservePage records one page request. merged and skipped are ignored when err is non-nil.
func (r *Recorder) ObservePage(d time.Duration, merged, skipped int, err error) {
	r.pageDuration.Observe(d.Seconds())
	if err != nil {
		r.pagesFetched.WithLabelValues("error").Inc()
		return
	}
	r.pagesFetched.WithLabelValues("success").Inc()
	r.recordsMerged.Add(float64(merged))
	r.recordsSkipped.Add(float64(skipped))
}

// SetEnqueued records the number of page tasks handed to workers.
func (r *Recorder) SetEnqueued(n int) {
	r.enqueued.Set(float64(n))
}

// ObserveFetch records the duration of a complete fetch.
func (r *Recorder) ObserveFetch(d time.Duration) {
	r.fetchDuration.Set(d.Seconds())
}

// Gatherer exposes the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteFile writes all metrics to path in the text exposition format.
func (r *Recorder) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
