// -----------------------------------------------------------------------------
// Metrics
// -----------------------------------------------------------------------------
// Row cache ve ızgara sorguları için Prometheus metrikleri.
//
// Metrikler global registry yerine Metrics'e ait bir registry'ye kaydedilir;
// testler ve birden fazla uygulama örneği birbirini etkilemez.
// -----------------------------------------------------------------------------

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orgtree"

// Metrics, uygulamanın metrik koleksiyonudur.
type Metrics struct {
	registry *prometheus.Registry

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec
	queryDuration  *prometheus.HistogramVec
	queryErrors    *prometheus.CounterVec
}

// New, kendi registry'si olan yeni bir Metrics oluşturur.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "row_cache",
			Name:      "hits_total",
			Help:      "Row cache hits by entity",
		}, []string{"entity"}),
		cacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "row_cache",
			Name:      "misses_total",
			Help:      "Row cache misses by entity",
		}, []string{"entity"}),
		cacheEvictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "row_cache",
			Name:      "evictions_total",
			Help:      "Row cache keys evicted on data change events",
		}, []string{"entity"}),
		queryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "query_duration_seconds",
			Help:      "Row model query execution time",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity", "mode"}),
		queryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "query_errors_total",
			Help:      "Row model requests that failed",
		}, []string{"entity"}),
	}
}

// CacheHit increments the hit counter for entity.
func (m *Metrics) CacheHit(entity string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(entity).Inc()
}

// CacheMiss increments the miss counter for entity.
func (m *Metrics) CacheMiss(entity string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(entity).Inc()
}

// CacheEvicted, tek bir olayda silinen anahtar sayısını ekler.
func (m *Metrics) CacheEvicted(entity string, keys int) {
	if m == nil || keys <= 0 {
		return
	}
	m.cacheEvictions.WithLabelValues(entity).Add(float64(keys))
}

// ObserveQuery, bir ızgara sorgusunun süresini kaydeder. mode "group" veya
// "flat" olur.
func (m *Metrics) ObserveQuery(entity, mode string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(entity, mode).Observe(time.Since(started).Seconds())
	if err != nil {
		m.queryErrors.WithLabelValues(entity).Inc()
	}
}

// Registry, test ve dışa aktarım için registry'yi döner.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler, /metrics için Prometheus HTTP handler'ı döner.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
