package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileOverrides is the on-disk shape accepted by LoadFile: every field is
// optional, letting an operator pin only the settings they care about while
// everything else still resolves from the environment.
type fileOverrides struct {
	BrokerURI        *string `yaml:"broker_uri"`
	BrokerUsername   *string `yaml:"broker_username"`
	BrokerPassword   *string `yaml:"broker_password"`
	GrinboxDomain    *string `yaml:"grinbox_domain"`
	GrinboxPort      *int    `yaml:"grinbox_port"`
	ProtocolUnsecure *bool   `yaml:"protocol_unsecure"`
	BindAddress      *string `yaml:"bind_address"`
}

// LoadFile reads environment-variable configuration via Load, then applies
// any values set in the YAML file at path on top of it. File values are
// applied unconditionally over whatever Load returned: Load alone cannot
// tell "default" from "explicitly exported". A deployment that wants the
// environment to win for a setting should leave it out of the file.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var overrides fileOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if overrides.BrokerURI != nil {
		cfg.BrokerURI = *overrides.BrokerURI
	}
	if overrides.BrokerUsername != nil {
		cfg.BrokerUsername = *overrides.BrokerUsername
	}
	if overrides.BrokerPassword != nil {
		cfg.BrokerPassword = *overrides.BrokerPassword
	}
	if overrides.GrinboxDomain != nil {
		cfg.GrinboxDomain = *overrides.GrinboxDomain
	}
	if overrides.GrinboxPort != nil {
		cfg.GrinboxPort = *overrides.GrinboxPort
	}
	if overrides.ProtocolUnsecure != nil {
		cfg.ProtocolUnsecure = *overrides.ProtocolUnsecure
	}
	if overrides.BindAddress != nil {
		cfg.BindAddress = *overrides.BindAddress
	}

	if cfg.BrokerURI == "" {
		return nil, fmt.Errorf("BROKER_URI must not be empty")
	}
	if cfg.BindAddress == "" {
		return nil, fmt.Errorf("BIND_ADDRESS must not be empty")
	}

	return cfg, nil
}
