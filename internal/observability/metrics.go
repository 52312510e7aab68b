package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Sync engine metrics
	SyncFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_fetches_total",
			Help: "Total number of incremental message fetches",
		},
		[]string{"trigger", "result"},
	)

	SyncMessagesMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_messages_merged_total",
			Help: "Total number of messages newly merged into room sessions",
		},
	)

	SyncFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_fetch_duration_seconds",
			Help:    "Incremental fetch latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Presence metrics
	PresenceHeartbeatsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_heartbeats_total",
			Help: "Total number of presence heartbeats sent",
		},
		[]string{"result"},
	)

	PresenceOnline = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "presence_online",
			Help: "Number of principals currently reported online per room",
		},
		[]string{"room_id"},
	)

	// Typing metrics
	TypingEventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "typing_events_published_total",
			Help: "Total number of typing events published after throttling",
		},
	)

	TypingEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "typing_events_dropped_total",
			Help: "Total number of typing signals dropped by the leading-edge throttle",
		},
	)

	// Notification metrics
	NotificationsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_raised_total",
			Help: "Total number of notifications raised, by kind",
		},
		[]string{"kind"},
	)

	NotificationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_suppressed_total",
			Help: "Total number of notifications suppressed, by reason",
		},
		[]string{"reason"},
	)

	// WebSocket push bridge metrics
	WebSocketConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
		[]string{"room_id"},
	)

	WebSocketEventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_events_sent_total",
			Help: "Total number of push events relayed via WebSocket",
		},
		[]string{"room_id", "topic"},
	)
)
