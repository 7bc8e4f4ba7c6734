// Package k8s verifies cluster health through the Kubernetes API.
package k8s

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps the Kubernetes API operations used for cluster verification.
type Client struct {
	clientset kubernetes.Interface
}

// New creates a client on top of an existing clientset.
func New(clientset kubernetes.Interface) *Client {
	return &Client{clientset: clientset}
}

// NewClientFromFile creates a client from a kubeconfig file, e.g. the
// admin.conf downloaded from a control plane.
func NewClientFromFile(kubeconfigPath string) (*Client, error) {
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}
	return &Client{clientset: clientset}, nil
}

// NodeStatus is the readiness of one registered node.
type NodeStatus struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// NodeStatuses returns the readiness of all registered nodes.
func (c *Client) NodeStatuses(ctx context.Context) ([]NodeStatus, error) {
	nodes, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	statuses := make([]NodeStatus, 0, len(nodes.Items))
	for _, node := range nodes.Items {
		statuses = append(statuses, NodeStatus{
			Name:  node.Name,
			Ready: isNodeReady(&node),
		})
	}
	return statuses, nil
}

// WaitForNodesReady polls until every named node is registered and ready.
func (c *Client) WaitForNodesReady(ctx context.Context, names []string, timeout time.Duration) error {
	expected := make(map[string]bool, len(names))
	for _, name := range names {
		expected[name] = true
	}

	return wait.PollUntilContextTimeout(ctx, 5*time.Second, timeout, true,
		func(ctx context.Context) (bool, error) {
			statuses, err := c.NodeStatuses(ctx)
			if err != nil {
				return false, nil // API server may still be settling
			}

			ready := make(map[string]bool, len(statuses))
			for _, status := range statuses {
				ready[status.Name] = status.Ready
			}
			for name := range expected {
				if !ready[name] {
					return false, nil
				}
			}
			return true, nil
		})
}

// SystemPodsReady reports whether all pods in kube-system are running or
// completed.
func (c *Client) SystemPodsReady(ctx context.Context) (bool, error) {
	pods, err := c.clientset.CoreV1().Pods("kube-system").List(ctx, metav1.ListOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to list system pods: %w", err)
	}

	for _, pod := range pods.Items {
		if pod.Status.Phase != corev1.PodRunning && pod.Status.Phase != corev1.PodSucceeded {
			return false, nil
		}
	}
	return true, nil
}

// ServerVersion returns the version reported by the API server.
func (c *Client) ServerVersion() (string, error) {
	version, err := c.clientset.Discovery().ServerVersion()
	if err != nil {
		return "", fmt.Errorf("failed to get server version: %w", err)
	}
	return version.GitVersion, nil
}

// isNodeReady checks the node's Ready condition.
func isNodeReady(node *corev1.Node) bool {
	for _, condition := range node.Status.Conditions {
		if condition.Type == corev1.NodeReady {
			return condition.Status == corev1.ConditionTrue
		}
	}
	return false
}
