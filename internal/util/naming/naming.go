// Package naming defines naming conventions for cluster resources.
//
// All cloud resources follow consistent naming patterns so that a cluster's
// resources can be identified and cleaned up by name or label alone.
package naming

import "fmt"

func SSHKey(cluster string) string {
	return fmt.Sprintf("%s-ssh", cluster)
}

func ControlPlane(cluster string, index int) string {
	return fmt.Sprintf("%s-control-plane-%d", cluster, index+1)
}

func Worker(cluster string, index int) string {
	return fmt.Sprintf("%s-worker-%d", cluster, index+1)
}

// RunStateObject is the object key / file name under which a cluster's
// bootstrap run state is persisted.
func RunStateObject(cluster string) string {
	return fmt.Sprintf("%s-run.yaml", cluster)
}

// Kubeconfig is the local file name for the retrieved admin kubeconfig.
func Kubeconfig(cluster string) string {
	return fmt.Sprintf("%s-kubeconfig", cluster)
}
