package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsOpened counts inbound websocket connections accepted.
	ConnectionsOpened = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "opened_total",
			Help:      "Total number of inbound connections accepted",
		},
	)

	// ConnectionsActive tracks connections currently open.
	ConnectionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "active",
			Help:      "Number of currently open inbound connections",
		},
	)

	// ConnectionsClosed counts connection teardowns, labeled by reason.
	ConnectionsClosed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "closed_total",
			Help:      "Total number of connections torn down",
		},
		[]string{"reason"}, // normal, abnormal, error
	)

	// SubscriptionsActive tracks addresses currently subscribed across all
	// connections (at most one subscription per connection).
	SubscriptionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "subscriptions",
			Name:      "active",
			Help:      "Number of currently active subscriptions",
		},
	)

	// SubscriptionsRejected counts subscribe attempts rejected because the
	// connection already holds a subscription.
	SubscriptionsRejected = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscriptions",
			Name:      "rejected_total",
			Help:      "Total number of subscribe requests rejected (too many subscriptions)",
		},
	)

	// SlatesPosted counts PostSlate requests, labeled by outcome.
	SlatesPosted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slates",
			Name:      "posted_total",
			Help:      "Total number of slates posted",
		},
		[]string{"route", "outcome"}, // route: local, federated; outcome: ok, error
	)

	// RequestDuration tracks how long request handling takes, labeled by
	// request kind (challenge, subscribe, unsubscribe, post_slate).
	RequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "duration_seconds",
			Help:      "Request handling duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"kind"},
	)
)
