// Package main is the entry point for the kubeboot CLI.
//
// kubeboot is a command-line tool for bootstrapping Kubernetes clusters
// on Hetzner Cloud with kubeadm over SSH. A run is resumable: invoking
// the same command again continues from the last recorded step instead
// of repeating work that already succeeded.
//
// Commands: init, create, destroy, health, version.
//
// For detailed usage information, run:
//
//	kubeboot --help
package main

import (
	"fmt"
	"os"

	"github.com/kubeboot/kubeboot/cmd/kubeboot/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
