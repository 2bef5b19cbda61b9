package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ResolverMetrics holds all Prometheus metrics for the resolution engine.
type ResolverMetrics struct {
	Resolutions    *prometheus.CounterVec
	Duration       prometheus.Histogram
	StaleDiscarded prometheus.Counter
	Impersonation  *prometheus.CounterVec
	ThemeRejected  *prometheus.CounterVec
}

// NewResolverMetrics initializes and registers the Prometheus metrics.
func NewResolverMetrics() *ResolverMetrics {
	return &ResolverMetrics{
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenantd",
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Total number of tenant resolutions by outcome.",
		}, []string{"outcome"}), // outcome: success or a resolution error code
		Duration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tenantd",
			Subsystem: "resolver",
			Name:      "duration_seconds",
			Help:      "Duration of tenant resolutions.",
			Buckets:   prometheus.DefBuckets,
		}),
		StaleDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "tenantd",
			Subsystem: "resolver",
			Name:      "stale_results_discarded_total",
			Help:      "Resolutions discarded because a newer principal change superseded them.",
		}),
		Impersonation: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenantd",
			Subsystem: "impersonation",
			Name:      "events_total",
			Help:      "Impersonation start/stop attempts by outcome.",
		}, []string{"action", "outcome"}), // action: start, stop; outcome: success, rejected, error
		ThemeRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenantd",
			Subsystem: "theme",
			Name:      "rejected_values_total",
			Help:      "Theme values rejected by the sanitizer, by field.",
		}, []string{"field"}),
	}
}
