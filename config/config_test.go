package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"BROKER_URI", "BROKER_USERNAME", "BROKER_PASSWORD",
		"GRINBOX_DOMAIN", "GRINBOX_PORT", "GRINBOX_PROTOCOL_UNSECURE",
		"BIND_ADDRESS",
	}
	for _, v := range vars {
		old, had := os.LookupEnv(v)
		os.Unsetenv(v)
		t.Cleanup(func() {
			if had {
				os.Setenv(v, old)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:61613", cfg.BrokerURI)
	assert.Equal(t, "guest", cfg.BrokerUsername)
	assert.Equal(t, "guest", cfg.BrokerPassword)
	assert.Equal(t, "127.0.0.1", cfg.GrinboxDomain)
	assert.Equal(t, 13420, cfg.GrinboxPort)
	assert.False(t, cfg.ProtocolUnsecure)
	assert.Equal(t, "0.0.0.0:13420", cfg.BindAddress)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)

	os.Setenv("BROKER_URI", "broker.example.com:61613")
	os.Setenv("BROKER_USERNAME", "relay")
	os.Setenv("BROKER_PASSWORD", "secret")
	os.Setenv("GRINBOX_DOMAIN", "relay.example.com")
	os.Setenv("GRINBOX_PORT", "443")
	os.Setenv("GRINBOX_PROTOCOL_UNSECURE", "1")
	os.Setenv("BIND_ADDRESS", "0.0.0.0:443")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "broker.example.com:61613", cfg.BrokerURI)
	assert.Equal(t, "relay", cfg.BrokerUsername)
	assert.Equal(t, "secret", cfg.BrokerPassword)
	assert.Equal(t, "relay.example.com", cfg.GrinboxDomain)
	assert.Equal(t, 443, cfg.GrinboxPort)
	assert.True(t, cfg.ProtocolUnsecure)
	assert.Equal(t, "0.0.0.0:443", cfg.BindAddress)
}

func TestLoadInvalidPort(t *testing.T) {
	clearEnv(t)

	os.Setenv("GRINBOX_PORT", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}
