// Package metrics defines the Prometheus collectors for the realtime and
// moderation layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Realtime connection metrics
var (
	// ConnectedClients tracks currently registered WebSocket connections.
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connected_clients",
			Help: "Currently registered WebSocket connections",
		},
	)

	// MessagesInTotal tracks inbound realtime messages by type.
	MessagesInTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_messages_in_total",
			Help: "Inbound realtime messages by message type",
		},
		[]string{"type"},
	)

	// MalformedMessagesTotal tracks inbound messages dropped as unparseable.
	MalformedMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_malformed_messages_total",
			Help: "Inbound realtime messages dropped as malformed",
		},
	)

	// PingFailures tracks keepalive ping write failures.
	PingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_ping_failures_total",
			Help: "WebSocket keepalive ping write failures",
		},
	)

	// ConnectionsRejectedTotal tracks connections refused before upgrade.
	ConnectionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_connections_rejected_total",
			Help: "Connections refused before WebSocket upgrade, by reason",
		},
		[]string{"reason"},
	)
)

// Broadcast metrics
var (
	// BroadcastsTotal tracks emitted events by event kind.
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_broadcasts_total",
			Help: "Events emitted by the broadcaster, by event kind",
		},
		[]string{"event"},
	)

	// BroadcastDropsTotal tracks per-recipient deliveries skipped because the
	// client's send buffer was full or the transport was gone.
	BroadcastDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_broadcast_drops_total",
			Help: "Per-recipient deliveries skipped during fan-out",
		},
	)

	// MessageSendDuration tracks WebSocket write latency in seconds.
	MessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtime_message_send_duration_seconds",
			Help:    "WebSocket message write duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)
)

// Presence metrics
var (
	// ActiveEditorSessions tracks live (client, article) editing pairs.
	ActiveEditorSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_active_editor_sessions",
			Help: "Live (client, article) editing sessions",
		},
	)
)

// Moderation metrics
var (
	// ArticleTransitionsTotal tracks moderation state machine transitions.
	ArticleTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "articles_transitions_total",
			Help: "Article moderation transitions by operation",
		},
		[]string{"operation"},
	)
)
