package commands

import (
	"github.com/spf13/cobra"

	"github.com/kubeboot/kubeboot/cmd/kubeboot/handlers"
)

// Init returns the command for creating a cluster configuration.
//
// In an interactive terminal this command runs a wizard that asks about
// cluster identity, topology, and the Kubernetes version. Without a
// terminal (CI, piped input) it writes a commented default configuration
// instead.
//
// Flags:
//
//	--output, -o: Path to output file (default "kubeboot.yaml")
func Init() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a cluster configuration",
		Long: `Create a cluster configuration file.

When run in an interactive terminal this command guides you through
configuring your cluster step by step:

  - Cluster identity (name and location)
  - Control plane count (1 for dev, 3 for HA)
  - Worker count and server size
  - Kubernetes version

When standard input is not a terminal, a commented default
configuration is written instead so the command stays usable in
scripts and CI.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "kubeboot.yaml", "Output file path")

	return cmd
}
