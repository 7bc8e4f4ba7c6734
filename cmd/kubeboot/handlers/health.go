package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kubeboot/kubeboot/internal/config"
	"github.com/kubeboot/kubeboot/internal/k8s"
	"github.com/kubeboot/kubeboot/internal/util/naming"
)

// kubeClient is the part of the Kubernetes wrapper the health command uses.
type kubeClient interface {
	ServerVersion() (string, error)
	NodeStatuses(ctx context.Context) ([]k8s.NodeStatus, error)
	SystemPodsReady(ctx context.Context) (bool, error)
	WaitForNodesReady(ctx context.Context, names []string, timeout time.Duration) error
}

// Factory function variables for health - can be replaced in tests.
var (
	// newKubeClient creates the Kubernetes client from a kubeconfig file.
	newKubeClient = func(path string) (kubeClient, error) {
		return k8s.NewClientFromFile(path)
	}

	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}
)

// HealthStatus represents the cluster health for JSON output.
type HealthStatus struct {
	ClusterName     string           `json:"clusterName"`
	ServerVersion   string           `json:"serverVersion"`
	Nodes           []k8s.NodeStatus `json:"nodes"`
	SystemPodsReady bool             `json:"systemPodsReady"`
}

// Health handles the health command.
//
// It talks to the Kubernetes API through the kubeconfig that a
// completed bootstrap downloaded and reports the server version and
// per-node readiness. With a wait duration it first blocks until every
// configured node registered as ready, or the duration elapsed.
func Health(ctx context.Context, configPath string, jsonOutput bool, wait time.Duration) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	path := kubeconfigPath(cfg)
	if !fileExists(path) {
		return fmt.Errorf("kubeconfig not found at %s - is the cluster created?", path)
	}

	client, err := newKubeClient(path)
	if err != nil {
		return fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	if wait > 0 {
		if err := client.WaitForNodesReady(ctx, expectedNodeNames(cfg), wait); err != nil {
			return fmt.Errorf("nodes did not become ready within %s: %w", wait, err)
		}
	}

	status, err := getClusterHealth(ctx, client, cfg.ClusterName)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printHealthJSON(status)
	}
	return printHealthFormatted(status)
}

// expectedNodeNames lists every node name the configured topology implies.
func expectedNodeNames(cfg *config.Config) []string {
	names := make([]string, 0, cfg.ControlPlane.Count+cfg.Workers.Count)
	for i := 0; i < cfg.ControlPlane.Count; i++ {
		names = append(names, naming.ControlPlane(cfg.ClusterName, i))
	}
	for i := 0; i < cfg.Workers.Count; i++ {
		names = append(names, naming.Worker(cfg.ClusterName, i))
	}
	return names
}

// getClusterHealth retrieves the cluster health status.
func getClusterHealth(ctx context.Context, client kubeClient, clusterName string) (*HealthStatus, error) {
	version, err := client.ServerVersion()
	if err != nil {
		return nil, fmt.Errorf("failed to reach the Kubernetes API: %w", err)
	}

	nodes, err := client.NodeStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	podsReady, err := client.SystemPodsReady(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check system pods: %w", err)
	}

	return &HealthStatus{
		ClusterName:     clusterName,
		ServerVersion:   version,
		Nodes:           nodes,
		SystemPodsReady: podsReady,
	}, nil
}

// printHealthJSON outputs health status as JSON.
func printHealthJSON(status *HealthStatus) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal health status: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printHealthFormatted outputs health status in a formatted display.
func printHealthFormatted(status *HealthStatus) error {
	fmt.Printf("kubeboot cluster: %s\n", status.ClusterName)
	fmt.Printf("Kubernetes %s\n", status.ServerVersion)
	fmt.Println()

	fmt.Println("Nodes:")
	readyCount := 0
	for _, node := range status.Nodes {
		indicator := "○"
		if node.Ready {
			indicator = "✓"
			readyCount++
		}
		fmt.Printf("  %s %s\n", indicator, node.Name)
	}
	fmt.Println()

	fmt.Printf("Ready: %d/%d nodes\n", readyCount, len(status.Nodes))
	if status.SystemPodsReady {
		fmt.Println("System pods: healthy")
	} else {
		fmt.Println("System pods: still settling")
	}
	return nil
}
