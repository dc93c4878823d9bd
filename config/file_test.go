package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileOverridesDefaults(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
broker_uri: broker.internal:61613
grinbox_domain: relay.internal
grinbox_port: 9000
protocol_unsecure: true
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "broker.internal:61613", cfg.BrokerURI)
	assert.Equal(t, "relay.internal", cfg.GrinboxDomain)
	assert.Equal(t, 9000, cfg.GrinboxPort)
	assert.True(t, cfg.ProtocolUnsecure)
	// Fields absent from the file keep Load's defaults.
	assert.Equal(t, "guest", cfg.BrokerUsername)
	assert.Equal(t, "0.0.0.0:13420", cfg.BindAddress)
}

func TestLoadFileEmptyPathIsJustLoad(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:61613", cfg.BrokerURI)
}

func TestLoadFileMissingFile(t *testing.T) {
	clearEnv(t)

	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
