// Package metrics collects bridge counters and exposes them in
// Prometheus format.
//
// All metrics live in a private registry so tests can create as many
// Metrics values as they like without colliding on the global default
// registry.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mqttbridge"

// Metrics holds every counter and gauge the bridge reports. Methods are
// safe for concurrent use.
//
// Per-connection breakdowns go to Prometheus; aggregate totals are also
// mirrored into plain atomics so the admin API can serve a cheap JSON
// snapshot without gathering the registry.
type Metrics struct {
	registry *prometheus.Registry

	inbound     *prometheus.CounterVec
	routed      *prometheus.CounterVec
	unrouted    *prometheus.CounterVec
	published   *prometheus.CounterVec
	failures    *prometheus.CounterVec
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	queueDepth  prometheus.Gauge
	queueCap    prometheus.Gauge

	totals struct {
		inbound     atomic.Int64
		routed      atomic.Int64
		unrouted    atomic.Int64
		published   atomic.Int64
		failures    atomic.Int64
		cacheHits   atomic.Int64
		cacheMisses atomic.Int64
	}
}

// Snapshot is a point-in-time copy of the aggregate counters.
type Snapshot struct {
	MessagesInbound   int64 `json:"messages_inbound"`
	MessagesRouted    int64 `json:"messages_routed"`
	MessagesUnrouted  int64 `json:"messages_unrouted"`
	MessagesPublished int64 `json:"messages_published"`
	PublishFailures   int64 `json:"publish_failures"`
	RouteCacheHits    int64 `json:"route_cache_hits"`
	RouteCacheMisses  int64 `json:"route_cache_misses"`
}

// New creates a Metrics with a fresh private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{registry: registry}

	m.inbound = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_inbound_total",
		Help:      "Messages received from brokers, by source connection.",
	}, []string{"connection"})

	m.routed = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_routed_total",
		Help:      "Inbound messages that matched at least one route, by source connection.",
	}, []string{"connection"})

	m.unrouted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_unrouted_total",
		Help:      "Inbound messages that matched no route, by source connection.",
	}, []string{"connection"})

	m.published = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_published_total",
		Help:      "Messages delivered to brokers, by destination connection.",
	}, []string{"connection"})

	m.failures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_failures_total",
		Help:      "Publishes that returned an error, by destination connection.",
	}, []string{"connection"})

	m.cacheHits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "route_cache_hits_total",
		Help:      "Route resolutions served from the cache.",
	})

	m.cacheMisses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "route_cache_misses_total",
		Help:      "Route resolutions that walked the table.",
	})

	m.queueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "forward_queue_depth",
		Help:      "Forwards waiting in the queue between listeners and the emitter.",
	})

	m.queueCap = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "forward_queue_capacity",
		Help:      "Capacity of the forward queue.",
	})

	return m
}

// MessageInbound records a message received on the named connection.
func (m *Metrics) MessageInbound(conn string) {
	m.inbound.WithLabelValues(conn).Inc()
	m.totals.inbound.Add(1)
}

// MessageRouted records an inbound message that produced a forward.
func (m *Metrics) MessageRouted(conn string) {
	m.routed.WithLabelValues(conn).Inc()
	m.totals.routed.Add(1)
}

// MessageUnrouted records an inbound message that matched no route.
func (m *Metrics) MessageUnrouted(conn string) {
	m.unrouted.WithLabelValues(conn).Inc()
	m.totals.unrouted.Add(1)
}

// MessagePublished records a delivery to the named connection.
func (m *Metrics) MessagePublished(conn string) {
	m.published.WithLabelValues(conn).Inc()
	m.totals.published.Add(1)
}

// PublishFailed records a failed delivery to the named connection.
func (m *Metrics) PublishFailed(conn string) {
	m.failures.WithLabelValues(conn).Inc()
	m.totals.failures.Add(1)
}

// RouteCacheHit records a route resolution served from the cache.
func (m *Metrics) RouteCacheHit() {
	m.cacheHits.Inc()
	m.totals.cacheHits.Add(1)
}

// RouteCacheMiss records a route resolution that walked the table.
func (m *Metrics) RouteCacheMiss() {
	m.cacheMisses.Inc()
	m.totals.cacheMisses.Add(1)
}

// SetQueueDepth reports the current number of queued forwards.
func (m *Metrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// SetQueueCapacity reports the forward queue's capacity.
func (m *Metrics) SetQueueCapacity(n int) {
	m.queueCap.Set(float64(n))
}

// Totals returns a snapshot of the aggregate counters.
func (m *Metrics) Totals() Snapshot {
	return Snapshot{
		MessagesInbound:   m.totals.inbound.Load(),
		MessagesRouted:    m.totals.routed.Load(),
		MessagesUnrouted:  m.totals.unrouted.Load(),
		MessagesPublished: m.totals.published.Load(),
		PublishFailures:   m.totals.failures.Load(),
		RouteCacheHits:    m.totals.cacheHits.Load(),
		RouteCacheMisses:  m.totals.cacheMisses.Load(),
	}
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
