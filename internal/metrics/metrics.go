package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WsConnections tracks currently open WebSocket connections.
	WsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chattu_ws_connections",
		Help: "Number of open WebSocket connections.",
	})

	// EventsDispatched counts events delivered to connection buffers.
	EventsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chattu_events_dispatched_total",
		Help: "Total events enqueued to live connections.",
	})

	// EventsDropped counts events dropped because a connection buffer was full.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chattu_events_dropped_total",
		Help: "Total events dropped for slow connections.",
	})
)
