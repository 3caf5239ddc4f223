// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes Prometheus instrumentation for every core
// component: the UDP listener's packet counters, the event store's query
// latencies, the scene-controller client's RPC/circuit-breaker state, the
// trigger engine's dispatch counts, and the distributor's broadcast queue
// depth.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UDP Listener Metrics (component B)
	UDPPacketsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vta_udp_packets_received_total",
			Help: "Total number of UDP datagrams received by the PSS listener",
		},
	)

	UDPBytesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vta_udp_bytes_received_total",
			Help: "Total number of bytes received by the PSS listener",
		},
	)

	UDPParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vta_udp_parse_errors_total",
			Help: "Total number of datagrams that failed to parse",
		},
	)

	UDPActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vta_udp_active_connections",
			Help: "Number of distinct peer addresses seen within the idle eviction window",
		},
	)

	// Event Store Metrics (component C)
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vta_store_query_duration_seconds",
			Help:    "Duration of event store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vta_store_query_errors_total",
			Help: "Total number of event store operation errors",
		},
		[]string{"operation"},
	)

	StorePoolInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vta_store_pool_connections_in_use",
			Help: "Current number of event store connections checked out of the pool",
		},
	)

	// Scene Controller Client Metrics (component D)
	SceneControllerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vta_scene_controller_requests_total",
			Help: "Total number of RPC requests sent to scene-controller endpoints",
		},
		[]string{"endpoint", "method", "result"},
	)

	SceneControllerCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vta_scene_controller_circuit_state",
			Help: "Circuit breaker state per scene-controller endpoint (0=closed, 1=half-open, 2=open)",
		},
		[]string{"endpoint"},
	)

	// Trigger Engine Metrics (component F)
	TriggerDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vta_trigger_dispatches_total",
			Help: "Total number of trigger actions dispatched",
		},
		[]string{"action_kind", "result"},
	)

	TriggerSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vta_trigger_suppressed_total",
			Help: "Total number of trigger fires suppressed by debounce, cooldown, or once_per scoping",
		},
		[]string{"reason"},
	)

	// Distributor Metrics (component G)
	DistributorQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vta_distributor_queue_depth",
			Help: "Current number of buffered events awaiting broadcast",
		},
	)

	DistributorDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vta_distributor_dropped_total",
			Help: "Total number of events dropped due to a slow overlay consumer",
		},
	)

	DistributorClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vta_distributor_connected_clients",
			Help: "Current number of connected overlay socket clients",
		},
	)

	// Persistence Pipeline Metrics (orchestrator's udpserver.Sink adapters)
	EventsPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vta_events_persisted_total",
			Help: "Total number of PSS events successfully written to the event store",
		},
	)

	EventsPersistFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vta_events_persist_failed_total",
			Help: "Total number of PSS events that failed to commit to the event store",
		},
	)

	QueueRecoveredPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vta_queue_recovered_pending",
			Help: "Number of durable queue entries recovered unconfirmed at startup",
		},
	)
)
