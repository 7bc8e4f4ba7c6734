package commands

import (
	"github.com/spf13/cobra"

	"github.com/kubeboot/kubeboot/cmd/kubeboot/handlers"
)

// Create returns the command for bootstrapping a cluster.
//
// The create command provisions servers, installs Kubernetes with
// kubeadm over SSH, and verifies that every node registered as ready.
// Re-running it against an existing cluster resumes where the previous
// run stopped; re-running against a healthy cluster is a no-op.
//
// Flags:
//
//	--config, -c: Path to cluster configuration YAML file (required)
//	--metrics-addr: Serve Prometheus metrics on this address during the run
func Create() *cobra.Command {
	var (
		configPath  string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Bootstrap a Kubernetes cluster",
		Long: `Create bootstraps a Kubernetes cluster on Hetzner Cloud.

The command runs four phases in order:

  1. provision              - create servers and the SSH key
  2. configure-control-plane - kubeadm init on the first control plane
  3. configure-workers       - join all workers concurrently
  4. verify                  - wait for every node to register as Ready

Progress is recorded after every step. If the run is interrupted or a
host fails, re-running the same command resumes from the last recorded step
instead of repeating completed work. Once every host reached its
terminal state, re-running makes no remote call at all.

Requires the HCLOUD_TOKEN environment variable.

Example:
  kubeboot create -c kubeboot.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Create(cmd.Context(), configPath, metricsAddr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to cluster configuration file (required)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9090)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
