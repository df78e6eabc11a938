package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the hub.
type Metrics struct {
	// Cache metrics.
	CacheLookups       *prometheus.CounterVec // labels: result={hit,miss,expired}
	CacheLoads         *prometheus.CounterVec // labels: outcome={success,error}
	CacheLoadsShared   prometheus.Counter
	CacheStoreFailures prometheus.Counter
	CacheSweeps        prometheus.Counter

	// Provider metrics.
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome={success,error,degraded}
	ProviderDuration *prometheus.HistogramVec // labels: provider

	// Classification metrics.
	PrioritySignals prometheus.Counter

	// Broadcast metrics.
	EventsPublished      prometheus.Counter
	EventsDelivered      prometheus.Counter
	EventsDropped        prometheus.Counter
	EventsPublishedKafka prometheus.Counter
	Subscribers          prometheus.Gauge
}

// NewMetrics creates and registers all hub metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.CacheLookups,
		m.CacheLoads,
		m.CacheLoadsShared,
		m.CacheStoreFailures,
		m.CacheSweeps,
		m.ProviderRequests,
		m.ProviderDuration,
		m.PrioritySignals,
		m.EventsPublished,
		m.EventsDelivered,
		m.EventsDropped,
		m.EventsPublishedKafka,
		m.Subscribers,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_hub",
			Name:      "cache_lookups_total",
			Help:      "Fingerprint cache lookups by result.",
		}, []string{"result"}),
		CacheLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_hub",
			Name:      "cache_loads_total",
			Help:      "Loader invocations by outcome.",
		}, []string{"outcome"}),
		CacheLoadsShared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signal_hub",
			Name:      "cache_loads_shared_total",
			Help:      "Calls that joined an in-flight load instead of starting their own.",
		}),
		CacheStoreFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signal_hub",
			Name:      "cache_store_failures_total",
			Help:      "Backing store failures absorbed by degrading to uncached loads.",
		}),
		CacheSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signal_hub",
			Name:      "cache_sweep_removed_total",
			Help:      "Expired entries removed by the eager sweep.",
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal_hub",
			Name:      "provider_requests_total",
			Help:      "Upstream provider fetches by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "signal_hub",
			Name:      "provider_request_duration_seconds",
			Help:      "Upstream provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		PrioritySignals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signal_hub",
			Name:      "priority_signals_total",
			Help:      "Signals flagged urgent by the priority classifier.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signal_hub",
			Name:      "events_published_total",
			Help:      "Mutation events published to the broadcaster.",
		}),
		EventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signal_hub",
			Name:      "events_delivered_total",
			Help:      "Event deliveries across all subscribers.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signal_hub",
			Name:      "events_dropped_total",
			Help:      "Event deliveries dropped because a subscriber queue was full.",
		}),
		EventsPublishedKafka: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "signal_hub",
			Name:      "events_published_kafka_total",
			Help:      "Mutation events forwarded to the Kafka egress topic.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "signal_hub",
			Name:      "subscribers",
			Help:      "Currently connected broadcast subscribers.",
		}),
	}
}
