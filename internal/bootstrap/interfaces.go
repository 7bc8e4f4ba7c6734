package bootstrap

import (
	"context"
	"time"

	"github.com/kubeboot/kubeboot/internal/config"
)

// Phase defines the interface for one bootstrap phase.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Run executes the phase logic against the shared context.
	Run(ctx *Context) error
}

// Provisioner realizes and destroys the declared set of hosts.
// Implementations must tolerate being invoked against partially-created
// infrastructure: an operation may take minutes and its failure midway can
// leave partial resources behind, so adoption of existing resources is
// required rather than assuming atomicity.
type Provisioner interface {
	// Provision realizes the topology and returns the full host set,
	// including any hosts that already existed from an earlier attempt.
	Provision(ctx context.Context, cfg *config.Config) ([]Host, error)

	// Destroy removes the given realized hosts and their shared resources.
	Destroy(ctx context.Context, cfg *config.Config, hosts []Host) error
}

// ExecResult carries the outcome of one remote command.
type ExecResult struct {
	ExitStatus int
	Stdout     string
	Stderr     string
}

// RemoteChannel executes commands and transfers files against one
// addressable host. Authentication material is a construction parameter of
// the channel, not of individual calls.
//
// A non-nil error from Execute means the command could not be run at all
// (transport failure, retryable); a nonzero ExitStatus with a nil error
// means the command ran and failed (not retryable).
type RemoteChannel interface {
	Execute(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error)
	Upload(ctx context.Context, localPath, remotePath string, recursive bool) error
	Download(ctx context.Context, remotePath, localPath string, recursive bool) error
}

// ChannelFactory opens a remote execution channel to one host.
type ChannelFactory func(host Host) (RemoteChannel, error)

// ScriptGenerator renders configuration script bodies. Pure function of its
// inputs; the orchestrator treats the output as opaque text to transfer and
// execute.
type ScriptGenerator interface {
	Generate(kind string, params map[string]string) (string, error)
}

// StateStore persists bootstrap runs across process restarts.
// Implementations must round-trip a Run losslessly (minus the credential
// value, which is never persisted).
type StateStore interface {
	Save(ctx context.Context, run *Run) error
	Load(ctx context.Context, clusterName string) (*Run, error)
	Delete(ctx context.Context, clusterName string) error
}
