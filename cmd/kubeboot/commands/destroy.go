package commands

import (
	"github.com/spf13/cobra"

	"github.com/kubeboot/kubeboot/cmd/kubeboot/handlers"
)

// Destroy returns the destroy command.
//
// The destroy command removes all cluster resources from Hetzner Cloud:
// every recorded server, any labelled server the run state does not
// know about, and the uploaded SSH key. The recorded run state is
// removed only after the infrastructure is gone.
func Destroy() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy a Kubernetes cluster and all associated resources",
		Long: `Destroy removes all cluster resources from Hetzner Cloud.

This command deletes all resources associated with the cluster:
  - Servers (control plane and worker nodes)
  - Servers carrying the cluster label that the run state lost track of
  - The uploaded SSH key
  - The recorded run state

The recorded run state is deleted only after the infrastructure is
gone, so a partially failed destroy can simply be re-run.

Requires the HCLOUD_TOKEN environment variable.

Example:
  kubeboot destroy -c kubeboot.yaml --yes

WARNING: This operation is irreversible. All cluster data will be lost.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to cluster configuration file (required)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
