package intent

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds intent classification metrics.
type Metrics struct {
	ClassificationsTotal *prometheus.CounterVec
	ErrorsTotal          *prometheus.CounterVec
	Duration             *prometheus.HistogramVec
}

// NewMetrics returns the process-wide intent metrics, registering them on
// first use.
//
// Metrics:
//   - taskextract_intent_classifications_total{backend, intent}
//   - taskextract_intent_errors_total{backend}
//   - taskextract_intent_duration_seconds{backend}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			ClassificationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "taskextract_intent_classifications_total",
					Help: "Total number of model classifications by resolved intent (none when unresolved)",
				},
				[]string{"backend", "intent"},
			),
			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "taskextract_intent_errors_total",
					Help: "Total number of failed model classifications",
				},
				[]string{"backend"},
			),
			Duration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "taskextract_intent_duration_seconds",
					Help:    "Model classification latency",
					Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
				},
				[]string{"backend"},
			),
		}
	})
	return globalMetrics
}
