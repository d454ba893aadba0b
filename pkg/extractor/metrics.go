package extractor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds pipeline metrics.
type Metrics struct {
	ExtractionsTotal  *prometheus.CounterVec
	Duration          prometheus.Histogram
	FinalConfidence   prometheus.Histogram
	DegradedTotal     *prometheus.CounterVec
	TerminalStage     *prometheus.CounterVec
	BatchDuration     prometheus.Histogram
	BatchItems        prometheus.Histogram
	CanceledItemTotal prometheus.Counter
}

// NewMetrics returns the process-wide pipeline metrics, registering them on
// first use.
//
// Metrics:
//   - taskextract_extractions_total{outcome}: valid, invalid, rejected, failed, cached
//   - taskextract_extraction_duration_seconds
//   - taskextract_final_confidence
//   - taskextract_component_degraded_total{component}
//   - taskextract_pipeline_terminal_stage_total{stage}
//   - taskextract_batch_duration_seconds
//   - taskextract_batch_items
//   - taskextract_batch_canceled_items_total
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			ExtractionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "taskextract_extractions_total",
					Help: "Total number of extraction requests by outcome",
				},
				[]string{"outcome"},
			),
			Duration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "taskextract_extraction_duration_seconds",
					Help:    "Extraction latency for requests that ran the pipeline",
					Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
				},
			),
			FinalConfidence: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "taskextract_final_confidence",
					Help:    "Distribution of aggregated confidence",
					Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
				},
			),
			DegradedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "taskextract_component_degraded_total",
					Help: "Total number of signal failures that degraded to zero confidence",
				},
				[]string{"component"},
			),
			TerminalStage: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "taskextract_pipeline_terminal_stage_total",
					Help: "Total number of pipeline runs by terminal stage",
				},
				[]string{"stage"},
			),
			BatchDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "taskextract_batch_duration_seconds",
					Help:    "Batch extraction latency",
					Buckets: prometheus.DefBuckets,
				},
			),
			BatchItems: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "taskextract_batch_items",
					Help:    "Number of requests per batch",
					Buckets: prometheus.ExponentialBuckets(1, 2, 12),
				},
			),
			CanceledItemTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "taskextract_batch_canceled_items_total",
					Help: "Total number of batch items never started because the batch was canceled",
				},
			),
		}
	})
	return globalMetrics
}
