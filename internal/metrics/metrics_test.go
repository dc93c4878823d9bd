package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	assert.NotNil(t, ConnectionsOpened)
	assert.NotNil(t, ConnectionsActive)
	assert.NotNil(t, ConnectionsClosed)
	assert.NotNil(t, SubscriptionsActive)
	assert.NotNil(t, SubscriptionsRejected)
	assert.NotNil(t, SlatesPosted)
	assert.NotNil(t, RequestDuration)
	assert.NotNil(t, BrokerPublishes)
	assert.NotNil(t, BrokerConsumers)
	assert.NotNil(t, BrokerReconnects)
	assert.NotNil(t, BrokerErrors)
	assert.NotNil(t, FederationAttempts)
	assert.NotNil(t, FederationOutcomes)
	assert.NotNil(t, FederationDuration)
	assert.NotNil(t, SubscriberReconnects)
	assert.NotNil(t, SubscriberDropped)
	assert.NotNil(t, SlatesReceived)
}

func TestMetricsIncrement(t *testing.T) {
	ConnectionsOpened.Inc()
	ConnectionsActive.Inc()
	ConnectionsClosed.WithLabelValues("normal").Inc()
	SlatesPosted.WithLabelValues("local", "ok").Inc()
	RequestDuration.WithLabelValues("post_slate").Observe(0.01)
	BrokerPublishes.WithLabelValues("ok").Inc()
	FederationAttempts.Inc()
	FederationOutcomes.WithLabelValues("ok").Inc()
	SlatesReceived.WithLabelValues("verified").Inc()

	assert.Equal(t, 1, testutil.CollectAndCount(ConnectionsOpened))
	assert.Equal(t, 1, testutil.CollectAndCount(ConnectionsClosed))
	assert.Equal(t, 1, testutil.CollectAndCount(SlatesPosted))
}
