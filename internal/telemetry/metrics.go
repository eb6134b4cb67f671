package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors for the live quiz coordinator. Exposed via the /metrics endpoint.
var (
	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "menti",
		Name:      "live_sessions",
		Help:      "Number of live quiz sessions currently held in the registry.",
	})

	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "menti",
		Name:      "live_connections",
		Help:      "Number of open websocket connections.",
	})

	LiveMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "menti",
		Name:      "live_messages_total",
		Help:      "Inbound live messages processed, by envelope type.",
	}, []string{"type"})
)
