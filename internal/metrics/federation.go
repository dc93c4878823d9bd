package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FederationAttempts counts outbound federated dial+post attempts.
	FederationAttempts = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "federation",
			Name:      "attempts_total",
			Help:      "Total number of federated post attempts",
		},
	)

	// FederationOutcomes counts federated post results, labeled by outcome.
	FederationOutcomes = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "federation",
			Name:      "outcomes_total",
			Help:      "Total number of federated post outcomes",
		},
		[]string{"outcome"}, // ok, error, dial_failure
	)

	// FederationDuration tracks the round-trip time of a federated dial,
	// challenge wait, post, and response.
	FederationDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "federation",
			Name:      "duration_seconds",
			Help:      "Duration of a federated post round trip in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
