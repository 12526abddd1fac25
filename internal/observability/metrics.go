// Package observability provides Prometheus metrics for the service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "huddle_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketRoomConnections is the gauge of connections per group room.
	WebSocketRoomConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "huddle_websocket_room_connections",
		Help: "Number of WebSocket connections per group room",
	}, []string{"group_id"})

	// WebSocketEventsTotal counts broadcast events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_websocket_events_total",
		Help: "Total WebSocket events broadcast by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// MessageThroughput counts persisted messages by kind (text/image).
	MessageThroughput = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_message_throughput_total",
		Help: "Total number of messages persisted",
	}, []string{"kind"})
)
