package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubscriberReconnects counts reconnect attempts made by the long-lived
	// subscriber client.
	SubscriberReconnects = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscriber",
			Name:      "reconnects_total",
			Help:      "Total number of subscriber reconnect attempts",
		},
	)

	// SubscriberDropped counts onDropped events (the first failure after a
	// session had completed its subscribe handshake).
	SubscriberDropped = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscriber",
			Name:      "dropped_total",
			Help:      "Total number of subscriber connections declared dropped",
		},
	)

	// SlatesReceived counts slates the subscriber client has received,
	// labeled by proof verification outcome.
	SlatesReceived = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscriber",
			Name:      "slates_received_total",
			Help:      "Total number of slates received by the subscriber client",
		},
		[]string{"proof_outcome"}, // verified, or a TxProof error kind
	)
)
