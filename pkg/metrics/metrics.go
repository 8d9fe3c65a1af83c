// Package metrics provides Prometheus observability for Tether. It exposes
// counters and gauges for connection lifecycle events and payload volume,
// labeled by transport so dashboards can break activity down per protocol.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks live adapter instances per transport
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tether_active_connections",
			Help: "Number of active connections",
		},
		[]string{"transport"},
	)

	// MessagesReceived counts inbound payloads per transport
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tether_messages_received_total",
			Help: "Total number of inbound messages",
		},
		[]string{"transport"},
	)

	// MessagesSent counts outbound payloads per transport
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tether_messages_sent_total",
			Help: "Total number of outbound messages",
		},
		[]string{"transport"},
	)

	// BytesReceived counts inbound payload bytes per transport
	BytesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tether_bytes_received_total",
			Help: "Total inbound payload bytes",
		},
		[]string{"transport"},
	)

	// BytesSent counts outbound payload bytes per transport
	BytesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tether_bytes_sent_total",
			Help: "Total outbound payload bytes",
		},
		[]string{"transport"},
	)

	// AdapterErrors counts errors reaching the adapter error path
	AdapterErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tether_adapter_errors_total",
			Help: "Total errors routed through the adapter error path",
		},
		[]string{"transport"},
	)

	// ConnectAttempts counts connect attempts and their outcome
	ConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tether_connect_attempts_total",
			Help: "Total connect attempts",
		},
		[]string{"transport", "outcome"},
	)

	// BackoffDelay observes the retry backoff delays applied between
	// failed connect attempts
	BackoffDelay = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tether_backoff_delay_seconds",
			Help:    "Backoff delay applied between connect retries",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"transport"},
	)

	// RequestDuration observes HTTP API request latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tether_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)
)
