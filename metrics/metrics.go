package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code", "service"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "service"},
	)

	// Pipeline metrics
	ItemsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "news_items_ingested_total",
			Help: "Total number of raw news items placed on the ingestion queue",
		},
		[]string{"source"},
	)

	ItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "news_items_processed_total",
			Help: "Total number of news items emitted by the processor",
		},
		[]string{"source", "category"},
	)

	ItemsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "news_items_skipped_total",
			Help: "Total number of raw items skipped by the processor",
		},
		[]string{"reason"},
	)

	ItemsBroadcast = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "news_items_broadcast_total",
			Help: "Total number of items dispatched by the broadcaster",
		},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "news_deliveries_total",
			Help: "Total number of per-connection delivery attempts",
		},
		[]string{"status"},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "news_stream_connections_active",
			Help: "Number of active news stream connections",
		},
	)

	ConnectionsEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "news_stream_connections_evicted_total",
			Help: "Total number of connections evicted by the registry",
		},
		[]string{"reason"},
	)

	// Database metrics
	MongoOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mongo_operations_total",
			Help: "Total number of MongoDB operations",
		},
		[]string{"operation", "collection", "status"},
	)

	// NATS metrics
	NatsMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_published_total",
			Help: "Total number of NATS messages published",
		},
		[]string{"subject", "status"},
	)

	NatsMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_received_total",
			Help: "Total number of NATS messages received",
		},
		[]string{"subject", "status"},
	)

	// Application health metrics
	ApplicationInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "application_info",
			Help: "Application information",
		},
		[]string{"service", "version", "environment"},
	)
)

// Initialize metrics with default values
func Init(serviceName, version, environment string) {
	ApplicationInfo.WithLabelValues(serviceName, version, environment).Set(1)
}
