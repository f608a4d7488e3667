package push

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricChannelsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "banter",
		Subsystem: "push",
		Name:      "channels_opened_total",
		Help:      "Channel tokens handed out.",
	})

	metricConnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "banter",
		Subsystem: "push",
		Name:      "connects_total",
		Help:      "WebSocket connections accepted on a channel token.",
	})

	metricRejects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "banter",
		Subsystem: "push",
		Name:      "rejects_total",
		Help:      "WebSocket connection attempts with a bad channel token.",
	})

	metricLiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "banter",
		Subsystem: "push",
		Name:      "live_connections",
		Help:      "Currently attached channel connections.",
	})
)
