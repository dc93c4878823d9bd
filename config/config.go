// Package config loads the relay's environment-variable configuration
// surface. Parsing itself is the only concern owned here; process startup
// and flag handling live in cmd/grinbox-relay.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the relay's runtime configuration.
type Config struct {
	// BrokerURI is the host:port of the durable STOMP broker.
	BrokerURI string

	// BrokerUsername/BrokerPassword authenticate the STOMP CONNECT frame.
	BrokerUsername string
	BrokerPassword string

	// GrinboxDomain/GrinboxPort are this relay's own identity, used to
	// decide whether a recipient address is local or requires federation.
	GrinboxDomain string
	GrinboxPort   int

	// ProtocolUnsecure, when true, makes federation dial ws:// instead of
	// wss:// when connecting to peer relays.
	ProtocolUnsecure bool

	// BindAddress is the inbound listen socket for client connections.
	BindAddress string
}

// Load reads configuration from environment variables, honoring a .env
// file in the working directory if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getEnvInt("GRINBOX_PORT", 13420)
	if err != nil {
		return nil, fmt.Errorf("GRINBOX_PORT: %w", err)
	}

	cfg := &Config{
		BrokerURI:        getEnv("BROKER_URI", "127.0.0.1:61613"),
		BrokerUsername:   getEnv("BROKER_USERNAME", "guest"),
		BrokerPassword:   getEnv("BROKER_PASSWORD", "guest"),
		GrinboxDomain:    getEnv("GRINBOX_DOMAIN", "127.0.0.1"),
		GrinboxPort:      port,
		ProtocolUnsecure: getEnv("GRINBOX_PROTOCOL_UNSECURE", "") != "",
		BindAddress:      getEnv("BIND_ADDRESS", "0.0.0.0:13420"),
	}

	if cfg.BrokerURI == "" {
		return nil, fmt.Errorf("BROKER_URI must not be empty")
	}
	if cfg.BindAddress == "" {
		return nil, fmt.Errorf("BIND_ADDRESS must not be empty")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", v, err)
	}
	return n, nil
}
