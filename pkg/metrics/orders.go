package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics tracks checkouts handed to WhatsApp.
type OrderMetrics struct {
	submitted *prometheus.CounterVec
	value     prometheus.Histogram
	fallback  prometheus.Counter
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	submitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_submitted_total",
		Help: "Orders submitted, split by whether the customer was signed in.",
	}, []string{"authenticated"})
	value := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_total_fcfa",
		Help:    "Order totals including delivery.",
		Buckets: []float64{5000, 10000, 25000, 50000, 100000, 250000, 500000},
	})
	fallback := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_code_fallbacks_total",
		Help: "Order codes generated with the epoch fallback.",
	})
	reg.MustRegister(submitted, value, fallback)
	return &OrderMetrics{submitted: submitted, value: value, fallback: fallback}
}

// ObserveSubmitted records one submitted order and its total.
func (o *OrderMetrics) ObserveSubmitted(authenticated bool, total float64) {
	if o == nil || o.submitted == nil {
		return
	}
	label := "false"
	if authenticated {
		label = "true"
	}
	o.submitted.WithLabelValues(label).Inc()
	o.value.Observe(total)
}

// IncFallbackCode counts a degraded order code.
func (o *OrderMetrics) IncFallbackCode() {
	if o == nil || o.fallback == nil {
		return
	}
	o.fallback.Inc()
}
