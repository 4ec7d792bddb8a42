// Package metrics provides Prometheus metrics for the rehearsal-api service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks the number of live WebSocket connections.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rehearsal_active_connections",
			Help: "Number of currently open WebSocket connections",
		},
	)

	// ActiveRooms tracks the number of rooms with at least one live connection.
	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rehearsal_active_rooms",
			Help: "Number of rooms with at least one live connection",
		},
	)

	// CommandsTotal tracks coordinator commands by type and outcome.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rehearsal_commands_total",
			Help: "Total number of session commands processed",
		},
		[]string{"command", "outcome"},
	)

	// BroadcastDrops tracks frames dropped for slow or dead connections.
	BroadcastDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rehearsal_broadcast_drops_total",
			Help: "Total number of frames dropped during fan-out",
		},
	)

	// StoreConflictRetries tracks optimistic-update races that were retried.
	StoreConflictRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rehearsal_store_conflict_retries_total",
			Help: "Total number of version-conflict retries against the session store",
		},
	)

	// SweepEvictions tracks membership entries pruned by the reconciliation sweep.
	SweepEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rehearsal_sweep_evictions_total",
			Help: "Total number of stale membership entries pruned by the sweeper",
		},
	)

	// HTTPRequestsTotal tracks HTTP requests by method, path and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rehearsal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rehearsal_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// RecordCommand records one processed coordinator command.
func RecordCommand(command, outcome string) {
	CommandsTotal.WithLabelValues(command, outcome).Inc()
}

// RecordRequest records one completed HTTP request.
func RecordRequest(method, path, status string, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}
