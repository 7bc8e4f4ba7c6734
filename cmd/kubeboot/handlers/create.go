// Package handlers implements the CLI command logic.
//
// Handlers load configuration, assemble the collaborators, and invoke
// the orchestrator. Construction goes through package-level factory
// function variables so tests can substitute fakes.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
	"github.com/kubeboot/kubeboot/internal/bootstrap/orchestrator"
	"github.com/kubeboot/kubeboot/internal/config"
	"github.com/kubeboot/kubeboot/internal/platform/hcloud"
	"github.com/kubeboot/kubeboot/internal/platform/s3"
	"github.com/kubeboot/kubeboot/internal/platform/ssh"
	"github.com/kubeboot/kubeboot/internal/scripts"
	"github.com/kubeboot/kubeboot/internal/state"
	"github.com/kubeboot/kubeboot/internal/util/naming"
)

// Factory function variables for create - can be replaced in tests.
var (
	// newProvisioner creates the Hetzner Cloud provisioner.
	newProvisioner = func(token string, timeouts *config.Timeouts) bootstrap.Provisioner {
		return hcloud.NewProvisioner(hcloud.NewRealClient(token), timeouts)
	}

	// newChannelFactory creates the SSH channel factory.
	newChannelFactory = ssh.NewFactory

	// newStateStore selects the run state backend from the configuration.
	newStateStore = func(ctx context.Context, cfg *config.Config) (bootstrap.StateStore, error) {
		if cfg.State.S3.Enabled() {
			client, err := s3.NewClient(cfg.State.S3)
			if err != nil {
				return nil, fmt.Errorf("failed to create S3 client: %w", err)
			}
			return state.NewS3Store(ctx, client)
		}
		return state.NewFileStore(config.ExpandPath(cfg.State.Dir)), nil
	}
)

// Create handles the create command.
//
// It loads the cluster configuration, assembles the orchestrator, and
// runs a full bootstrap. Partial failures are reported per host; the
// run state is persisted so the command can be re-invoked to resume.
func Create(ctx context.Context, configPath, metricsAddr string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	token := os.Getenv("HCLOUD_TOKEN")
	if token == "" {
		return fmt.Errorf("HCLOUD_TOKEN environment variable is required")
	}

	if metricsAddr != "" {
		stop := serveMetrics(metricsAddr)
		defer stop()
	}

	timeouts := config.LoadTimeouts()
	channels, err := newChannelFactory(cfg)
	if err != nil {
		return err
	}
	store, err := newStateStore(ctx, cfg)
	if err != nil {
		return err
	}

	o := orchestrator.New(cfg, newProvisioner(token, timeouts), channels, scripts.NewGenerator(), store)
	o.Timeouts = timeouts

	log.Printf("Creating cluster: %s", cfg.ClusterName)
	result, err := o.Bootstrap(ctx)
	if result != nil {
		reportResult(cfg, result)
	}
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	if result != nil && len(result.FailedHosts()) > 0 {
		return fmt.Errorf("%d host(s) failed; re-run create to retry them", len(result.FailedHosts()))
	}
	return nil
}

// reportResult prints the outcome of a bootstrap invocation.
func reportResult(cfg *config.Config, result *orchestrator.Result) {
	switch {
	case result.Skipped:
		fmt.Printf("Cluster %s is already fully bootstrapped (checked in %s).\n",
			cfg.ClusterName, result.Duration.Round(time.Millisecond))
		return
	case result.Resumed:
		fmt.Printf("Resumed bootstrap of cluster %s.\n", cfg.ClusterName)
	}

	failed := result.FailedHosts()
	if len(failed) == 0 && result.Run.AllTerminalSuccess() {
		fmt.Printf("Cluster %s is ready (%s).\n", cfg.ClusterName, result.Duration.Round(time.Second))
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Printf("  export KUBECONFIG=%s\n", kubeconfigPath(cfg))
		fmt.Println("  kubectl get nodes")
		return
	}

	for _, host := range failed {
		fmt.Printf("  host %s failed: %s\n", host.Name, host.LastError)
	}
}

// serveMetrics exposes the Prometheus registry for the duration of the
// run and returns a function that shuts the listener down.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics listener failed: %v", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}

// loadConfig loads and validates the cluster configuration.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		configPath = "kubeboot.yaml"
	}
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// kubeconfigPath is where a successful bootstrap left the admin kubeconfig.
func kubeconfigPath(cfg *config.Config) string {
	return filepath.Join(config.ExpandPath(cfg.State.Dir), naming.Kubeconfig(cfg.ClusterName))
}
