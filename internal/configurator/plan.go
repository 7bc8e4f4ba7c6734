// Package configurator turns a host into a cluster node by executing an
// ordered operation plan over its remote channel: render scripts locally,
// transfer them, run them, and record every step in the host's operation log
// so an interrupted run resumes where it stopped.
package configurator

import (
	"fmt"
	"path/filepath"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
	"github.com/kubeboot/kubeboot/internal/config"
	"github.com/kubeboot/kubeboot/internal/scripts"
)

// remoteScriptDir is where staged scripts land on the node.
const remoteScriptDir = "/opt/kubeboot"

// ArtifactJoinCommand is the artifact key under which the control plane plan
// emits the cluster join command.
const ArtifactJoinCommand = "join-command"

// Operation is one unit of work in a host's configuration plan. Exactly one
// group of fields is populated, selected by Kind.
type Operation struct {
	Name string
	Kind bootstrap.OperationKind

	// script-generate
	ScriptKind string
	Params     map[string]string
	OutputPath string

	// file-transfer
	LocalPath  string
	RemotePath string
	Recursive  bool

	// remote-command
	Command string
	// Emit captures the command's trimmed stdout into the outcome artifacts
	// under this key.
	Emit string
}

// ControlPlanePlan builds the ordered plan that turns a provisioned host into
// an initialised control plane. The final operation emits the cluster join
// command for the worker fan-out.
func ControlPlanePlan(cfg *config.Config, host bootstrap.Host, stagingDir string) []Operation {
	initScript := filepath.Join(stagingDir, "control-plane-init.sh")
	remoteInit := remoteScriptDir + "/control-plane-init.sh"

	plan := basePrep(cfg, host, stagingDir)
	plan = append(plan,
		Operation{
			Name:       "generate control plane init script",
			Kind:       bootstrap.OpScriptGenerate,
			ScriptKind: scripts.KindControlPlaneInit,
			Params: map[string]string{
				scripts.ParamKubernetesVersion: cfg.Kubernetes.Version,
				scripts.ParamPodNetworkCIDR:    cfg.Kubernetes.PodNetworkCIDR,
				scripts.ParamServiceCIDR:       cfg.Kubernetes.ServiceCIDR,
				scripts.ParamAdvertiseAddress:  advertiseAddress(host),
				scripts.ParamNodeName:          host.Name,
			},
			OutputPath: initScript,
		},
		Operation{
			Name:       "upload control plane init script",
			Kind:       bootstrap.OpFileTransfer,
			LocalPath:  initScript,
			RemotePath: remoteInit,
		},
		Operation{
			Name:    "run kubeadm init",
			Kind:    bootstrap.OpRemoteCommand,
			Command: fmt.Sprintf("bash %s", remoteInit),
		},
		Operation{
			Name:    "emit join command",
			Kind:    bootstrap.OpRemoteCommand,
			Command: "kubeadm token create --print-join-command",
			Emit:    ArtifactJoinCommand,
		},
	)
	return plan
}

// WorkerPlan builds the ordered plan that joins a provisioned host to the
// cluster. It can only be built once the join command has been captured,
// which is how the ordering invariant is made structural: there is no worker
// plan to run before the credential exists.
func WorkerPlan(cfg *config.Config, host bootstrap.Host, stagingDir, joinCommand string) []Operation {
	joinScript := filepath.Join(stagingDir, "worker-join.sh")
	remoteJoin := remoteScriptDir + "/worker-join.sh"

	plan := basePrep(cfg, host, stagingDir)
	plan = append(plan,
		Operation{
			Name:       "generate worker join script",
			Kind:       bootstrap.OpScriptGenerate,
			ScriptKind: scripts.KindWorkerJoin,
			Params: map[string]string{
				scripts.ParamJoinCommand: joinCommand,
				scripts.ParamNodeName:    host.Name,
			},
			OutputPath: joinScript,
		},
		Operation{
			Name:       "upload worker join script",
			Kind:       bootstrap.OpFileTransfer,
			LocalPath:  joinScript,
			RemotePath: remoteJoin,
		},
		Operation{
			Name:    "run kubeadm join",
			Kind:    bootstrap.OpRemoteCommand,
			Command: fmt.Sprintf("bash %s", remoteJoin),
		},
	)
	return plan
}

// JoinRefreshIndex returns the index of the first worker plan operation that
// embeds the join credential. A resumed worker restarts from at most this
// index: the script staged by an earlier run carries that run's token, which
// may have expired, so generation and upload always re-run with the live one.
func JoinRefreshIndex(plan []Operation) int {
	for i, op := range plan {
		if op.ScriptKind == scripts.KindWorkerJoin {
			return i
		}
	}
	return len(plan)
}

// BasePlan is the role-independent node preparation plan. Control planes
// beyond the first receive only this until multi-control-plane join is
// supported.
func BasePlan(cfg *config.Config, host bootstrap.Host, stagingDir string) []Operation {
	return basePrep(cfg, host, stagingDir)
}

// basePrep is the node preparation prefix shared by both roles.
func basePrep(cfg *config.Config, host bootstrap.Host, stagingDir string) []Operation {
	prepScript := filepath.Join(stagingDir, "common-prep.sh")
	remotePrep := remoteScriptDir + "/common-prep.sh"

	return []Operation{
		{
			Name:       "generate node prep script",
			Kind:       bootstrap.OpScriptGenerate,
			ScriptKind: scripts.KindCommonPrep,
			Params: map[string]string{
				scripts.ParamKubernetesVersion: cfg.Kubernetes.Version,
			},
			OutputPath: prepScript,
		},
		{
			Name:       "upload node prep script",
			Kind:       bootstrap.OpFileTransfer,
			LocalPath:  prepScript,
			RemotePath: remotePrep,
		},
		{
			Name:    "run node prep",
			Kind:    bootstrap.OpRemoteCommand,
			Command: fmt.Sprintf("mkdir -p %s && bash %s", remoteScriptDir, remotePrep),
		},
	}
}

func advertiseAddress(host bootstrap.Host) string {
	if host.PrivateAddress != "" {
		return host.PrivateAddress
	}
	return host.PublicAddress
}
