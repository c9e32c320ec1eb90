package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reconciliation outcomes recorded by the catalog sync poller.
const (
	SyncResultReloaded  = "reloaded"
	SyncResultUnchanged = "unchanged"
	SyncResultThrottled = "throttled"
	SyncResultFailed    = "failed"
)

// SyncMetrics records catalog reconciliation runs.
type SyncMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	products prometheus.Gauge
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_sync_duration_seconds",
		Help:    "Duration of catalog reconciliations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_runs_total",
		Help: "Catalog reconciliations by trigger and result.",
	}, []string{"trigger", "result"})
	products := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_products",
		Help: "Products in the active catalog.",
	})
	reg.MustRegister(duration, runs, products)
	return &SyncMetrics{
		duration: duration,
		runs:     runs,
		products: products,
	}
}

// ObserveDuration records how long a reconciliation took.
func (s *SyncMetrics) ObserveDuration(trigger string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(trigger)).Observe(duration.Seconds())
}

// IncRun counts one reconciliation attempt.
func (s *SyncMetrics) IncRun(trigger, result string) {
	if s == nil || s.runs == nil {
		return
	}
	s.runs.WithLabelValues(normalizeLabel(trigger), normalizeLabel(result)).Inc()
}

// SetProducts publishes the size of the active catalog.
func (s *SyncMetrics) SetProducts(count int) {
	if s == nil || s.products == nil {
		return
	}
	s.products.Set(float64(count))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
