package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// Validate checks the configuration for common errors and returns a detailed
// error if validation fails. A cluster needs at least one control plane node;
// the worker count may be zero.
func (c *Config) Validate() error {
	if c.ClusterName == "" {
		return fmt.Errorf("cluster_name is required")
	}
	if c.ControlPlane.Count < 1 {
		return fmt.Errorf("control_plane.count must be at least 1, got %d", c.ControlPlane.Count)
	}
	if c.Workers.Count < 0 {
		return fmt.Errorf("workers.count must not be negative, got %d", c.Workers.Count)
	}

	if err := c.validateSSH(); err != nil {
		return fmt.Errorf("ssh validation failed: %w", err)
	}
	if err := c.validateCIDRs(); err != nil {
		return fmt.Errorf("network validation failed: %w", err)
	}
	return nil
}

func (c *Config) validateSSH() error {
	if c.SSH.PublicKeyPath == "" {
		return fmt.Errorf("ssh.public_key_path is required")
	}
	if c.SSH.PrivateKeyPath == "" {
		return fmt.Errorf("ssh.private_key_path is required")
	}
	for _, path := range []string{c.SSH.PublicKeyPath, c.SSH.PrivateKeyPath} {
		if _, err := os.Stat(ExpandPath(path)); err != nil {
			return fmt.Errorf("ssh key not found at %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) validateCIDRs() error {
	for name, cidr := range map[string]string{
		"kubernetes.pod_network_cidr": c.Kubernetes.PodNetworkCIDR,
		"kubernetes.service_cidr":     c.Kubernetes.ServiceCIDR,
	} {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, cidr, err)
		}
	}
	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
