package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kubeboot/kubeboot/cmd/kubeboot/handlers"
)

// Health returns the command for displaying cluster health status.
//
// This command talks to the Kubernetes API through the kubeconfig that
// a completed bootstrap downloaded and shows the server version plus
// per-node readiness.
//
// Optional flags:
//
//	--config, -c: Path to cluster configuration YAML file (required)
//	--json: Output in JSON format
//	--wait: Block until every configured node is ready, up to this duration
func Health() *cobra.Command {
	var (
		configPath string
		jsonOutput bool
		wait       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show cluster health status",
		Long: `Display the current health status of your kubeboot cluster.

Shows:
  - The Kubernetes server version
  - Every node with its readiness
  - Whether the kube-system pods settled

The command uses the admin kubeconfig downloaded at the end of a
successful bootstrap, so it requires a completed "kubeboot create".

Examples:
  # Show cluster health
  kubeboot health -c kubeboot.yaml

  # Get health status in JSON format
  kubeboot health -c kubeboot.yaml --json

  # Wait up to five minutes for all nodes to become ready
  kubeboot health -c kubeboot.yaml --wait 5m`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Health(cmd.Context(), configPath, jsonOutput, wait)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to cluster configuration file (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait for all configured nodes to be ready before reporting")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
