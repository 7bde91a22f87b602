// Package metrics holds the Prometheus collectors for the blog server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spacetraveling"

// Registry is private to the process so tests can create servers freely.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

var (
	CMSRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cms_requests_total",
			Help:      "CMS API requests by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	CMSRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cms_request_duration_seconds",
			Help:      "Duration of CMS API requests, retries included",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	CMSRetries = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cms_retries_total",
			Help:      "CMS API request retries",
		},
		[]string{"op"},
	)

	CircuitState = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cms_circuit_state",
			Help:      "CMS circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	PageCache = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_cache_lookups_total",
			Help:      "Page cache lookups by page kind and result (hit, stale, miss)",
		},
		[]string{"kind", "result"},
	)

	Regenerations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_regenerations_total",
			Help:      "Page regenerations by page kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	LoadMore = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_more_total",
			Help:      "Load-more requests by outcome",
		},
		[]string{"outcome"},
	)

	MalformedRecords = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_records_total",
			Help:      "CMS records skipped because they did not match the post schema",
		},
	)

	ListingSessions = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "listing_sessions",
			Help:      "Live listing sessions holding a pagination tracker",
		},
	)
)

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
