package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// LoadFile reads and parses the configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	var cfg Config
	if err := mapstructure.Decode(rawConfig, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// WriteDefault writes a commented default configuration to path.
// Used by `kubeboot init` when no configuration file exists yet.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	return os.WriteFile(path, []byte(DefaultYAML), 0o600)
}

// DefaultYAML is the starter configuration written by `kubeboot init`.
const DefaultYAML = `# kubeboot cluster configuration
cluster_name: demo
location: nbg1

control_plane:
  count: 1
  server_type: cx32

workers:
  count: 2
  server_type: cx42

ssh:
  user: root
  public_key_path: ~/.ssh/id_ed25519.pub
  private_key_path: ~/.ssh/id_ed25519

kubernetes:
  version: "1.31.4"
  pod_network_cidr: 10.244.0.0/16
  service_cidr: 10.96.0.0/12

state:
  dir: .kubeboot
  # Optional shared state backend (S3-compatible):
  # s3:
  #   endpoint: https://fsn1.your-objectstorage.com
  #   region: fsn1
  #   bucket: kubeboot-state
  #   access_key: ...
  #   secret_key: ...
`
