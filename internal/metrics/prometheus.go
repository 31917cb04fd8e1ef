// Package metrics exposes cache and LLM activity as Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/krisalay/ttl-cache/types"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "ttlcache"

// Default histogram buckets for LLM request duration (in milliseconds)
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// Source values for the LLM duration histogram.
const (
	SourceCache    = "cache"
	SourceStore    = "store"
	SourceProvider = "provider"
	SourceError    = "error"
)

// PrometheusMetrics owns a private registry with the cache collectors.
type PrometheusMetrics struct {
	registry  *prometheus.Registry
	namespace string

	// Counters
	hitsTotal          *prometheus.CounterVec
	missesTotal        *prometheus.CounterVec
	evictionsTotal     *prometheus.CounterVec
	expirationsTotal   *prometheus.CounterVec
	factoryErrorsTotal *prometheus.CounterVec

	// Histograms
	llmDuration *prometheus.HistogramVec
}

// New builds a registry with Go and process collectors plus the cache
// collectors. An empty namespace uses DefaultNamespace.
func New(namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      name,
				Help:      help,
			},
			[]string{"cache"},
		)
	}

	pm := &PrometheusMetrics{
		registry:           registry,
		namespace:          namespace,
		hitsTotal:          counter("hits_total", "Lookups that found a live entry"),
		missesTotal:        counter("misses_total", "Lookups that found nothing or an expired entry"),
		evictionsTotal:     counter("evictions_total", "Entries dropped in insertion order to make room"),
		expirationsTotal:   counter("expirations_total", "Expired entries removed on lookup"),
		factoryErrorsTotal: counter("factory_errors_total", "GetOrSet factories that returned an error"),

		llmDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_milliseconds",
				Help:      "Duration of memoized LLM completions in milliseconds",
				Buckets:   defaultBuckets,
			},
			[]string{"model", "source"},
		),
	}

	registry.MustRegister(
		pm.hitsTotal,
		pm.missesTotal,
		pm.evictionsTotal,
		pm.expirationsTotal,
		pm.factoryErrorsTotal,
		pm.llmDuration,
	)

	return pm
}

// ForCache returns a types.Metrics that records events under the given cache label.
func (pm *PrometheusMetrics) ForCache(name string) types.Metrics {
	return &cacheMetrics{
		hits:          pm.hitsTotal.WithLabelValues(name),
		misses:        pm.missesTotal.WithLabelValues(name),
		evictions:     pm.evictionsTotal.WithLabelValues(name),
		expirations:   pm.expirationsTotal.WithLabelValues(name),
		factoryErrors: pm.factoryErrorsTotal.WithLabelValues(name),
	}
}

// RegisterCacheSize exposes fn as the ttlcache_cache_entries gauge for the named cache.
// Registering the same name twice fails.
func (pm *PrometheusMetrics) RegisterCacheSize(name string, fn func() float64) error {
	g := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   pm.namespace,
			Subsystem:   "cache",
			Name:        "entries",
			Help:        "Entries physically stored, including expired ones not yet purged",
			ConstLabels: prometheus.Labels{"cache": name},
		},
		fn,
	)
	if err := pm.registry.Register(g); err != nil {
		return fmt.Errorf("register size gauge for %q: %w", name, err)
	}
	return nil
}

// ObserveLLMRequest records one Complete call.
func (pm *PrometheusMetrics) ObserveLLMRequest(model, source string, d time.Duration) {
	pm.llmDuration.WithLabelValues(model, source).Observe(float64(d.Microseconds()) / 1000)
}

// Handler returns an HTTP handler serving the registry in the exposition format.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

type cacheMetrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	evictions     prometheus.Counter
	expirations   prometheus.Counter
	factoryErrors prometheus.Counter
}

func (m *cacheMetrics) Hit()          { m.hits.Inc() }
func (m *cacheMetrics) Miss()         { m.misses.Inc() }
func (m *cacheMetrics) Eviction()     { m.evictions.Inc() }
func (m *cacheMetrics) Expire()       { m.expirations.Inc() }
func (m *cacheMetrics) FactoryError() { m.factoryErrors.Inc() }
