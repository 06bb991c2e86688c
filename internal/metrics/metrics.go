package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groupchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupchat_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"}, // "ip" or "user"
	)

	// Chat metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_messages_sent_total",
			Help: "Messages appended to the log",
		},
	)

	MessagesDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_messages_deduplicated_total",
			Help: "Sends answered from an earlier message with the same client token",
		},
	)

	PublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_publish_failures_total",
			Help: "Room events that could not be published after a successful write",
		},
	)

	// Realtime metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupchat_ws_connections",
			Help: "Open WebSocket connections",
		},
	)

	RoomSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "groupchat_room_subscriptions",
			Help: "Active (connection, room) subscriptions",
		},
	)

	DeliveriesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_deliveries_dropped_total",
			Help: "Events dropped because a subscriber's send buffer was full",
		},
	)

	RelayEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupchat_relay_events_total",
			Help: "Room events passed through the Redis relay",
		},
		[]string{"direction"}, // "out" or "in"
	)
)
