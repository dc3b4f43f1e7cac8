package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingSummaries counts computed pricing summaries by source (cart, order, quote).
	PricingSummaries *prometheus.CounterVec
	// PricingLineAnomalies counts suspicious line items accepted from upstream by kind.
	PricingLineAnomalies *prometheus.CounterVec
	// CartMutations counts optimistic cart mutations by operation and outcome.
	CartMutations *prometheus.CounterVec
	// BackendRequests counts Commerce Backend calls by operation and result.
	BackendRequests *prometheus.CounterVec
	// BackendLatency records Commerce Backend call latency in milliseconds.
	BackendLatency *prometheus.HistogramVec
	// OrderCacheLookups counts order cache lookups by result (hit, miss, error).
	OrderCacheLookups *prometheus.CounterVec
	// CatalogCacheLookups counts product cache lookups by view (list, detail) and result.
	CatalogCacheLookups *prometheus.CounterVec
	// RateLimitDecisions counts rate limiter decisions by scope and outcome.
	RateLimitDecisions *prometheus.CounterVec
	// ActiveSessions tracks sessions currently holding client state.
	ActiveSessions prometheus.Gauge
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingSummaries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_summaries_total",
			Help:      "Count of pricing summaries computed by source.",
		}, []string{"source"})
		PricingLineAnomalies = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_line_anomalies_total",
			Help:      "Count of line items with suspicious pricing data by kind.",
		}, []string{"kind"})
		CartMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart mutations by operation and outcome.",
		}, []string{"op", "result"})
		BackendRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Count of Commerce Backend requests by operation and result.",
		}, []string{"op", "result"})
		BackendLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_ms",
			Help:      "Latency of Commerce Backend requests in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"op"})
		OrderCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_cache_lookups_total",
			Help:      "Count of order cache lookups by result.",
		}, []string{"result"})
		CatalogCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_lookups_total",
			Help:      "Count of product cache lookups by view and result.",
		}, []string{"view", "result"})
		RateLimitDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_decisions_total",
			Help:      "Count of rate limiter decisions by scope and outcome.",
		}, []string{"scope", "outcome"})
		ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of sessions holding client-side cart state.",
		})

		mustRegisterCollector(reg, PricingSummaries, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PricingSummaries = v
			}
		})
		mustRegisterCollector(reg, PricingLineAnomalies, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PricingLineAnomalies = v
			}
		})
		mustRegisterCollector(reg, CartMutations, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartMutations = v
			}
		})
		mustRegisterCollector(reg, BackendRequests, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BackendRequests = v
			}
		})
		mustRegisterCollector(reg, BackendLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				BackendLatency = v
			}
		})
		mustRegisterCollector(reg, OrderCacheLookups, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrderCacheLookups = v
			}
		})
		mustRegisterCollector(reg, CatalogCacheLookups, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CatalogCacheLookups = v
			}
		})
		mustRegisterCollector(reg, RateLimitDecisions, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RateLimitDecisions = v
			}
		})
		mustRegisterCollector(reg, ActiveSessions, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				ActiveSessions = v
			}
		})
	})
}

// IncCounter increments vec with labels when the collector has been registered.
// Packages call it instead of touching the globals directly so tests that skip
// registration still run.
func IncCounter(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

// Observe records v on hist with labels when the collector has been registered.
func Observe(hist *prometheus.HistogramVec, v float64, labels ...string) {
	if hist == nil {
		return
	}
	hist.WithLabelValues(labels...).Observe(v)
}

// SetGauge sets g when the collector has been registered.
func SetGauge(g prometheus.Gauge, v float64) {
	if g == nil {
		return
	}
	g.Set(v)
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
