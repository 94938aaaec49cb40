// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchTotal counts pushes per event and outcome.
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_dispatch_total",
			Help: "Channel pushes by event and result",
		},
		[]string{"event", "result"},
	)

	// ChannelAuthTotal counts subscription authorization decisions.
	ChannelAuthTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_channel_auth_total",
			Help: "Channel authorization decisions by channel kind and result",
		},
		[]string{"kind", "result"},
	)

	// WSConnections tracks open WebSocket connections on this node.
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_ws_connections",
			Help: "Number of open WebSocket connections",
		},
	)

	// GuestSessionsTotal counts guest session lifecycle transitions.
	GuestSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_guest_sessions_total",
			Help: "Guest session transitions",
		},
		[]string{"transition"},
	)

	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path", "status"},
	)
)
