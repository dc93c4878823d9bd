package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BrokerPublishes counts messages published to the broker, labeled by
	// outcome.
	BrokerPublishes = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "publishes_total",
			Help:      "Total number of publish operations sent to the broker",
		},
		[]string{"outcome"}, // ok, error
	)

	// BrokerConsumers tracks the number of live consumer subscriptions held
	// against the broker.
	BrokerConsumers = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "consumers_active",
			Help:      "Number of currently active broker consumer subscriptions",
		},
	)

	// BrokerReconnects is registered for broker reconnect attempts. The
	// adapter has no reconnect path, so nothing increments it.
	BrokerReconnects = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "reconnects_total",
			Help:      "Total number of broker reconnect attempts",
		},
	)

	// BrokerErrors counts broker adapter errors, labeled by operation.
	BrokerErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "errors_total",
			Help:      "Total number of broker adapter errors",
		},
		[]string{"operation"}, // subscribe, unsubscribe, publish, connect
	)
)
