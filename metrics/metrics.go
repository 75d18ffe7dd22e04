// Package metrics exporta para o Prometheus, num registry próprio, os eventos
// do cache, do coalescer e da admissão.
package metrics

import (
	"context"
	"net/http"
	"time"

	"seat-gateway/lookup/cache"
	"seat-gateway/lookup/coalesce"
	"seat-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seat_gateway"

type Metrics struct {
	registry *prometheus.Registry

	cacheLookups   *prometheus.CounterVec
	cacheRemovals  *prometheus.CounterVec
	cacheEntries   prometheus.Gauge
	backendFetches *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	fetchJoins     prometheus.Counter
	queuePending   prometheus.Gauge
	admissions     *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by result",
	}, []string{"result"})

	cacheRemovals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_removals_total",
		Help:      "Entries removed from the cache by reason",
	}, []string{"reason"})

	cacheEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_entries",
		Help:      "Entries currently held by the cache",
	})

	backendFetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_fetches_total",
		Help:      "Backend calls made by the coalescer by outcome",
	}, []string{"outcome"})

	fetchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_fetch_duration_seconds",
		Help:      "Time from enqueue to resolution of a backend fetch",
		Buckets:   prometheus.DefBuckets,
	})

	fetchJoins := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_fetch_joins_total",
		Help:      "Lookups that joined an outstanding fetch for the same key",
	})

	queuePending := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backend_queue_pending",
		Help:      "Keys enqueued and not yet resolved",
	})

	admissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admission_decisions_total",
		Help:      "Admission decisions by method and outcome",
	}, []string{"method", "outcome"})

	registry.MustRegister(cacheLookups, cacheRemovals, cacheEntries, backendFetches, fetchDuration, fetchJoins, queuePending, admissions)

	return &Metrics{
		registry:       registry,
		cacheLookups:   cacheLookups,
		cacheRemovals:  cacheRemovals,
		cacheEntries:   cacheEntries,
		backendFetches: backendFetches,
		fetchDuration:  fetchDuration,
		fetchJoins:     fetchJoins,
		queuePending:   queuePending,
		admissions:     admissions,
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Cache devolve o observer para cache.WithObserver.
func (m *Metrics) Cache() cache.Observer { return cacheObserver{m} }

// Coalescer devolve o observer para coalesce.WithObserver.
func (m *Metrics) Coalescer() coalesce.Observer { return coalesceObserver{m} }

// Record implementa domain.StatsStore. Chave e path ficam fora dos labels
// para a cardinalidade não crescer sem limite.
func (m *Metrics) Record(_ context.Context, ev domain.StatsEvent) error {
	method := ev.Method
	if method == "" {
		method = "unknown"
	}
	m.admissions.WithLabelValues(method, ev.Outcome()).Inc()
	return nil
}

var _ domain.StatsStore = (*Metrics)(nil)

type cacheObserver struct{ m *Metrics }

func (o cacheObserver) Hit()  { o.m.cacheLookups.WithLabelValues("hit").Inc() }
func (o cacheObserver) Miss() { o.m.cacheLookups.WithLabelValues("miss").Inc() }

func (o cacheObserver) Expired(n int) {
	o.m.cacheRemovals.WithLabelValues("expired").Add(float64(n))
}

func (o cacheObserver) Evicted(n int) {
	o.m.cacheRemovals.WithLabelValues("evicted").Add(float64(n))
}

func (o cacheObserver) Size(n int) { o.m.cacheEntries.Set(float64(n)) }

type coalesceObserver struct{ m *Metrics }

func (o coalesceObserver) Fetched(outcome string, elapsed time.Duration) {
	o.m.backendFetches.WithLabelValues(outcome).Inc()
	o.m.fetchDuration.Observe(elapsed.Seconds())
}

func (o coalesceObserver) Joined()       { o.m.fetchJoins.Inc() }
func (o coalesceObserver) Pending(n int) { o.m.queuePending.Set(float64(n)) }
