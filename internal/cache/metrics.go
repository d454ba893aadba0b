package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics is a Prometheus-backed Observer.
type Metrics struct {
	HitsTotal      *prometheus.CounterVec
	MissesTotal    *prometheus.CounterVec
	EvictionsTotal *prometheus.CounterVec
	Size           *prometheus.GaugeVec
}

// NewMetrics returns the process-wide cache metrics, registering them on
// first use. Every cache is distinguished by the "cache" label.
//
// Metrics:
//   - taskextract_cache_hits_total{cache}
//   - taskextract_cache_misses_total{cache}
//   - taskextract_cache_evictions_total{cache}
//   - taskextract_cache_entries{cache}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			HitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "taskextract_cache_hits_total",
					Help: "Total number of cache hits",
				},
				[]string{"cache"},
			),
			MissesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "taskextract_cache_misses_total",
					Help: "Total number of cache misses",
				},
				[]string{"cache"},
			),
			EvictionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "taskextract_cache_evictions_total",
					Help: "Total number of least-recently-used evictions",
				},
				[]string{"cache"},
			),
			Size: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "taskextract_cache_entries",
					Help: "Current number of cached entries",
				},
				[]string{"cache"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) CacheHit(name string)   { m.HitsTotal.WithLabelValues(name).Inc() }
func (m *Metrics) CacheMiss(name string)  { m.MissesTotal.WithLabelValues(name).Inc() }
func (m *Metrics) CacheEvict(name string) { m.EvictionsTotal.WithLabelValues(name).Inc() }

func (m *Metrics) CacheSize(name string, size int) {
	m.Size.WithLabelValues(name).Set(float64(size))
}

var _ Observer = (*Metrics)(nil)
