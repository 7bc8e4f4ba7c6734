package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"
)

// WizardResult holds the user's choices from the interactive wizard.
type WizardResult struct {
	Name              string
	Location          string
	ControlPlaneCount int
	WorkerCount       int
	WorkerServerType  string
	KubernetesVersion string
}

// RunWizard runs the interactive configuration wizard.
func RunWizard(ctx context.Context) (*WizardResult, error) {
	result := &WizardResult{
		Location:          "nbg1",
		ControlPlaneCount: 1,
		WorkerCount:       2,
		WorkerServerType:  "cx42",
		KubernetesVersion: "1.31.4",
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cluster name").
				Description("A unique name for your cluster (DNS-safe, lowercase)").
				Placeholder("my-cluster").
				Value(&result.Name).
				Validate(validateClusterName),
		),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Location").
				Description("Hetzner Cloud datacenter location").
				Options(
					huh.NewOption("Nuremberg, Germany (nbg1)", "nbg1"),
					huh.NewOption("Falkenstein, Germany (fsn1)", "fsn1"),
					huh.NewOption("Helsinki, Finland (hel1)", "hel1"),
				).
				Value(&result.Location),
		),

		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Control planes").
				Description("1 for development, 3 for high availability").
				Options(
					huh.NewOption("1 control plane", 1),
					huh.NewOption("3 control planes", 3),
				).
				Value(&result.ControlPlaneCount),
		),

		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Number of workers").
				Description("Worker nodes run your application workloads").
				Options(
					huh.NewOption("1 worker", 1),
					huh.NewOption("2 workers", 2),
					huh.NewOption("3 workers", 3),
					huh.NewOption("5 workers", 5),
				).
				Value(&result.WorkerCount),

			huh.NewSelect[string]().
				Title("Worker size").
				Description("Shared vCPU instances (cost-effective)").
				Options(
					huh.NewOption("CX22 - 2 vCPU, 4GB RAM", "cx22"),
					huh.NewOption("CX32 - 4 vCPU, 8GB RAM", "cx32"),
					huh.NewOption("CX42 - 8 vCPU, 16GB RAM", "cx42"),
					huh.NewOption("CX52 - 16 vCPU, 32GB RAM", "cx52"),
				).
				Value(&result.WorkerServerType),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Kubernetes version").
				Description("Patch version installed on every node").
				Value(&result.KubernetesVersion).
				Validate(validateKubernetesVersion),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("wizard canceled: %w", err)
	}
	return result, nil
}

// ToConfig converts the wizard result into a full configuration with
// every default filled in, so the written YAML is explicit.
func (r *WizardResult) ToConfig() *Config {
	cfg := &Config{
		ClusterName:  r.Name,
		Location:     r.Location,
		ControlPlane: NodeGroup{Count: r.ControlPlaneCount},
		Workers:      NodeGroup{Count: r.WorkerCount, ServerType: r.WorkerServerType},
		SSH: SSHConfig{
			PublicKeyPath:  "~/.ssh/id_ed25519.pub",
			PrivateKeyPath: "~/.ssh/id_ed25519",
		},
		Kubernetes: KubernetesConfig{Version: r.KubernetesVersion},
	}
	cfg.applyDefaults()
	return cfg
}

// WriteYAML writes a configuration to path, refusing to overwrite.
func WriteYAML(cfg *Config, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func validateClusterName(s string) error {
	if s == "" {
		return fmt.Errorf("cluster name is required")
	}
	if len(s) > 63 {
		return fmt.Errorf("cluster name must be 63 characters or less")
	}
	for _, c := range s {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return fmt.Errorf("cluster name can only contain lowercase letters, numbers, and hyphens")
		}
	}
	if s[0] == '-' || s[len(s)-1] == '-' {
		return fmt.Errorf("cluster name cannot start or end with a hyphen")
	}
	return nil
}

func validateKubernetesVersion(s string) error {
	if strings.Count(s, ".") != 2 {
		return fmt.Errorf("expected a full patch version like 1.31.4")
	}
	return nil
}
