package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the server's Prometheus metrics. Each server instance
// carries its own registry so independent instances never fight over
// registration.
type metrics struct {
	registry *prometheus.Registry

	ChatTurnsTotal       *prometheus.CounterVec
	ChatTurnDuration     prometheus.Histogram
	WebsocketConnections prometheus.Gauge
}

// newMetrics creates and registers the server metrics.
func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &metrics{registry: registry}

	m.ChatTurnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alcove_chat_turns_total",
			Help: "Total number of chat turns by outcome",
		},
		[]string{"status"},
	)

	m.ChatTurnDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alcove_chat_turn_duration_seconds",
			Help:    "Duration of chat turns in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.WebsocketConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "alcove_websocket_connections",
			Help: "Number of open websocket connections",
		},
	)

	return m
}

// RecordTurn records a chat turn with its outcome.
func (m *metrics) RecordTurn(status string, duration time.Duration) {
	m.ChatTurnsTotal.WithLabelValues(status).Inc()
	m.ChatTurnDuration.Observe(duration.Seconds())
}
