// Package config handles cluster configuration loading and validation.
package config

// Config holds the declarative cluster topology and all run settings.
// It is constructed once (from YAML) and passed by reference into the
// orchestrator and collaborators; there is no ambient global state.
type Config struct {
	ClusterName string `mapstructure:"cluster_name" yaml:"cluster_name"`
	Location    string `mapstructure:"location" yaml:"location"`

	ControlPlane NodeGroup `mapstructure:"control_plane" yaml:"control_plane"`
	Workers      NodeGroup `mapstructure:"workers" yaml:"workers"`

	SSH        SSHConfig        `mapstructure:"ssh" yaml:"ssh"`
	Kubernetes KubernetesConfig `mapstructure:"kubernetes" yaml:"kubernetes"`
	State      StateConfig      `mapstructure:"state" yaml:"state"`
}

// NodeGroup describes the requested shape of one cluster role.
type NodeGroup struct {
	Count      int    `mapstructure:"count" yaml:"count"`
	ServerType string `mapstructure:"server_type" yaml:"server_type"`
}

// SSHConfig holds the remote access parameters for node configuration.
// The key material is a channel-construction parameter, not per-call.
type SSHConfig struct {
	User           string `mapstructure:"user" yaml:"user"`
	PublicKeyPath  string `mapstructure:"public_key_path" yaml:"public_key_path"`
	PrivateKeyPath string `mapstructure:"private_key_path" yaml:"private_key_path"`
	Port           int    `mapstructure:"port" yaml:"port"`
}

// KubernetesConfig holds the versions and CIDRs baked into generated scripts.
type KubernetesConfig struct {
	Version        string `mapstructure:"version" yaml:"version"`
	PodNetworkCIDR string `mapstructure:"pod_network_cidr" yaml:"pod_network_cidr"`
	ServiceCIDR    string `mapstructure:"service_cidr" yaml:"service_cidr"`
}

// StateConfig selects where bootstrap run state is persisted.
// The local directory is always used; S3 is optional for shared state.
type StateConfig struct {
	Dir string   `mapstructure:"dir" yaml:"dir"`
	S3  S3Config `mapstructure:"s3" yaml:"s3"`
}

// S3Config holds credentials for an S3-compatible object storage endpoint.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Region    string `mapstructure:"region" yaml:"region"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
}

// Enabled reports whether the S3 state backend is configured.
func (s S3Config) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

// applyDefaults fills in values that are optional in the YAML file.
func (c *Config) applyDefaults() {
	if c.Location == "" {
		c.Location = "nbg1"
	}
	if c.ControlPlane.ServerType == "" {
		c.ControlPlane.ServerType = "cx32"
	}
	if c.Workers.ServerType == "" {
		c.Workers.ServerType = "cx42"
	}
	if c.SSH.User == "" {
		c.SSH.User = "root"
	}
	if c.SSH.Port == 0 {
		c.SSH.Port = 22
	}
	if c.Kubernetes.Version == "" {
		c.Kubernetes.Version = "1.31.4"
	}
	if c.Kubernetes.PodNetworkCIDR == "" {
		c.Kubernetes.PodNetworkCIDR = "10.244.0.0/16"
	}
	if c.Kubernetes.ServiceCIDR == "" {
		c.Kubernetes.ServiceCIDR = "10.96.0.0/12"
	}
	if c.State.Dir == "" {
		c.State.Dir = ".kubeboot"
	}
	if c.State.S3.Region == "" {
		c.State.S3.Region = "us-east-1"
	}
}
