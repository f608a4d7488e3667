package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "banter",
		Subsystem: "registry",
		Name:      "tokens_issued_total",
		Help:      "Session tokens issued.",
	})

	metricTokensReleased = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "banter",
		Subsystem: "registry",
		Name:      "tokens_released_total",
		Help:      "Session tokens released.",
	})

	metricPoolExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "banter",
		Subsystem: "registry",
		Name:      "pool_exhausted_total",
		Help:      "Token requests refused because every anonymous slot was taken.",
	})

	metricBroadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "banter",
		Subsystem: "broadcast",
		Name:      "broadcasts_total",
		Help:      "Broadcast calls that reached fan-out.",
	})

	metricDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "banter",
		Subsystem: "broadcast",
		Name:      "deliveries_total",
		Help:      "Per-recipient deliveries handed to the push transport.",
	})

	metricDeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "banter",
		Subsystem: "broadcast",
		Name:      "delivery_failures_total",
		Help:      "Per-recipient deliveries the transport rejected.",
	})

	metricDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "banter",
		Subsystem: "broadcast",
		Name:      "dropped_total",
		Help:      "Messages dropped before fan-out.",
	}, []string{"reason"})
)
