package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/kubeboot/kubeboot/internal/config"
)

// Factory function variables for init - can be replaced in tests.
var (
	// isInteractive reports whether stdin is attached to a terminal.
	isInteractive = func() bool {
		fd := os.Stdin.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}

	// runWizard runs the interactive configuration wizard.
	runWizard = config.RunWizard

	// writeWizardConfig writes the wizard result to a file.
	writeWizardConfig = config.WriteYAML

	// writeDefaultConfig writes the commented default configuration.
	writeDefaultConfig = config.WriteDefault
)

// Init creates a cluster configuration file.
//
// In an interactive terminal it runs the wizard; otherwise it writes
// the commented default configuration so the command stays usable in
// scripts and CI.
func Init(ctx context.Context, outputPath string) error {
	if !isInteractive() {
		if err := writeDefaultConfig(outputPath); err != nil {
			return err
		}
		fmt.Printf("Default configuration written to %s. Edit it before running create.\n", outputPath)
		return nil
	}

	printWelcome()

	result, err := runWizard(ctx)
	if err != nil {
		return err
	}

	cfg := result.ToConfig()
	if err := writeWizardConfig(cfg, outputPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printInitSuccess(outputPath, cfg)
	return nil
}

// printWelcome prints the welcome message.
func printWelcome() {
	fmt.Println()
	fmt.Println("kubeboot - Kubernetes on Hetzner Cloud")
	fmt.Println("======================================")
	fmt.Println()
	fmt.Println("This wizard creates a cluster configuration with sensible defaults.")
	fmt.Println("The generated YAML is fully expanded and explicit.")
	fmt.Println()
}

// printInitSuccess prints the success message with summary and next steps.
func printInitSuccess(outputPath string, cfg *config.Config) {
	fmt.Println()
	fmt.Println("Configuration saved!")
	fmt.Println()
	fmt.Printf("  File: %s\n", outputPath)
	fmt.Println()

	fmt.Println("Cluster Summary")
	fmt.Println("---------------")
	fmt.Printf("  Name:           %s\n", cfg.ClusterName)
	fmt.Printf("  Location:       %s\n", cfg.Location)
	fmt.Printf("  Control Planes: %d x %s\n", cfg.ControlPlane.Count, cfg.ControlPlane.ServerType)
	fmt.Printf("  Workers:        %d x %s\n", cfg.Workers.Count, cfg.Workers.ServerType)
	fmt.Printf("  Kubernetes:     v%s\n", cfg.Kubernetes.Version)
	fmt.Println()

	fmt.Println("Next Steps")
	fmt.Println("----------")
	fmt.Println("  1. Set your Hetzner Cloud API token:")
	fmt.Println("     export HCLOUD_TOKEN=<your-token>")
	fmt.Println()
	fmt.Printf("  2. Review %s if needed\n", outputPath)
	fmt.Println()
	fmt.Println("  3. Create your cluster:")
	fmt.Printf("     kubeboot create -c %s\n", outputPath)
	fmt.Println()
}
