package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
	"github.com/kubeboot/kubeboot/internal/bootstrap/orchestrator"
	"github.com/kubeboot/kubeboot/internal/config"
	"github.com/kubeboot/kubeboot/internal/scripts"
)

// Factory function variables for destroy - can be replaced in tests.
var (
	// newTeardownOrchestrator assembles the orchestrator used for teardown.
	newTeardownOrchestrator = func(ctx context.Context, cfg *config.Config, token string) (*orchestrator.Orchestrator, error) {
		timeouts := config.LoadTimeouts()
		channels, err := newChannelFactory(cfg)
		if err != nil {
			return nil, err
		}
		store, err := newStateStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		o := orchestrator.New(cfg, newProvisioner(token, timeouts), channels, scripts.NewGenerator(), store)
		o.Timeouts = timeouts
		return o, nil
	}

	// confirmDestroy asks the user to type the cluster name.
	confirmDestroy = func(clusterName string) (bool, error) {
		fmt.Printf("This permanently deletes all servers of cluster %q.\n", clusterName)
		fmt.Printf("Type the cluster name to confirm: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("failed to read confirmation: %w", err)
		}
		return strings.TrimSpace(line) == clusterName, nil
	}
)

// Destroy handles the destroy command.
//
// It loads the cluster configuration and deletes all associated servers
// and the SSH key from Hetzner Cloud in a single teardown call. The
// recorded run state is removed only after the destroy succeeded.
func Destroy(ctx context.Context, configPath string, yes bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	token := os.Getenv("HCLOUD_TOKEN")
	if token == "" {
		return fmt.Errorf("HCLOUD_TOKEN environment variable is required")
	}

	if !yes {
		ok, err := confirmDestroy(cfg.ClusterName)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("confirmation did not match cluster name, aborting")
		}
	}

	o, err := newTeardownOrchestrator(ctx, cfg, token)
	if err != nil {
		return err
	}

	log.Printf("Destroying cluster: %s", cfg.ClusterName)
	result, err := o.Teardown(ctx)
	if err != nil {
		var provisionErr *bootstrap.ProvisionError
		if errors.As(err, &provisionErr) {
			return fmt.Errorf("destroy incomplete, re-run to retry: %w", err)
		}
		return fmt.Errorf("destroy failed: %w", err)
	}

	log.Printf("Cluster %s destroyed successfully (%d recorded hosts removed)", cfg.ClusterName, len(result.Hosts))
	return nil
}
