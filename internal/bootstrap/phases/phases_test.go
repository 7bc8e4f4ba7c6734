package phases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
	"github.com/kubeboot/kubeboot/internal/config"
	"github.com/kubeboot/kubeboot/internal/scripts"
	"github.com/kubeboot/kubeboot/internal/util/naming"
)

// commandEntry records one remote call for ordering assertions.
type commandEntry struct {
	Host    string
	Command string
}

type recorder struct {
	mu      sync.Mutex
	entries []commandEntry

	// exec decides the result of each remote command; nil means success
	// with empty output.
	exec func(host, command string) (*bootstrap.ExecResult, error)
}

func (r *recorder) record(host, command string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, commandEntry{Host: host, Command: command})
}

func (r *recorder) commands() []commandEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]commandEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

type recordedChannel struct {
	host string
	rec  *recorder
}

func (c *recordedChannel) Execute(_ context.Context, command string, _ time.Duration) (*bootstrap.ExecResult, error) {
	c.rec.record(c.host, command)
	if c.rec.exec != nil {
		return c.rec.exec(c.host, command)
	}
	return &bootstrap.ExecResult{}, nil
}

func (c *recordedChannel) Upload(context.Context, string, string, bool) error   { return nil }
func (c *recordedChannel) Download(context.Context, string, string, bool) error { return nil }

type mockProvisioner struct {
	ProvisionFunc func(ctx context.Context, cfg *config.Config) ([]bootstrap.Host, error)
	DestroyFunc   func(ctx context.Context, cfg *config.Config, hosts []bootstrap.Host) error
}

func (m *mockProvisioner) Provision(ctx context.Context, cfg *config.Config) ([]bootstrap.Host, error) {
	if m.ProvisionFunc != nil {
		return m.ProvisionFunc(ctx, cfg)
	}
	return topologyHosts(cfg), nil
}

func (m *mockProvisioner) Destroy(ctx context.Context, cfg *config.Config, hosts []bootstrap.Host) error {
	if m.DestroyFunc != nil {
		return m.DestroyFunc(ctx, cfg, hosts)
	}
	return nil
}

func topologyHosts(cfg *config.Config) []bootstrap.Host {
	var hosts []bootstrap.Host
	for i := 0; i < cfg.ControlPlane.Count; i++ {
		hosts = append(hosts, bootstrap.Host{
			ID:            fmt.Sprintf("%d", i+1),
			Name:          naming.ControlPlane(cfg.ClusterName, i),
			Role:          bootstrap.RoleControlPlane,
			PublicAddress: fmt.Sprintf("203.0.113.%d", i+1),
			State:         bootstrap.StateProvisioned,
		})
	}
	for i := 0; i < cfg.Workers.Count; i++ {
		hosts = append(hosts, bootstrap.Host{
			ID:            fmt.Sprintf("%d", 100+i),
			Name:          naming.Worker(cfg.ClusterName, i),
			Role:          bootstrap.RoleWorker,
			PublicAddress: fmt.Sprintf("203.0.113.%d", 100+i),
			State:         bootstrap.StateProvisioned,
		})
	}
	return hosts
}

const joinCommand = "kubeadm join 10.0.0.2:6443 --token abc.def --discovery-token-ca-cert-hash sha256:1234"

// allReadyExec answers the happy path: the control plane emits a join
// command and reports every cluster node as Ready.
func allReadyExec(run *bootstrap.Run) func(host, command string) (*bootstrap.ExecResult, error) {
	return func(host, command string) (*bootstrap.ExecResult, error) {
		if strings.Contains(command, "token create") {
			return &bootstrap.ExecResult{Stdout: joinCommand + "\n"}, nil
		}
		if strings.Contains(command, "get nodes") {
			var lines []string
			for _, h := range run.Snapshot().Hosts {
				lines = append(lines, fmt.Sprintf("%s   Ready   <none>   2m   v1.31.4", h.Name))
			}
			return &bootstrap.ExecResult{Stdout: strings.Join(lines, "\n")}, nil
		}
		return &bootstrap.ExecResult{}, nil
	}
}

func newTestContext(t *testing.T, cpCount, workerCount int, rec *recorder) *bootstrap.Context {
	t.Helper()

	cfg := &config.Config{
		ClusterName:  "demo",
		Location:     "nbg1",
		ControlPlane: config.NodeGroup{Count: cpCount, ServerType: "cx32"},
		Workers:      config.NodeGroup{Count: workerCount, ServerType: "cx42"},
		Kubernetes: config.KubernetesConfig{
			Version:        "1.31.4",
			PodNetworkCIDR: "10.244.0.0/16",
			ServiceCIDR:    "10.96.0.0/12",
		},
		State: config.StateConfig{Dir: t.TempDir()},
	}

	channels := func(host bootstrap.Host) (bootstrap.RemoteChannel, error) {
		return &recordedChannel{host: host.Name, rec: rec}, nil
	}

	ctx := bootstrap.NewContext(context.Background(), cfg,
		&mockProvisioner{}, channels, scripts.NewGenerator(), nil)
	ctx.Run = bootstrap.NewRun(cfg.ClusterName, bootstrap.Topology{
		ControlPlanes: cpCount,
		Workers:       workerCount,
	})
	ctx.Timeouts = &config.Timeouts{
		Provision:         time.Minute,
		Destroy:           time.Minute,
		RemoteCommand:     time.Second,
		FileTransfer:      time.Second,
		CredentialWait:    time.Second,
		Verify:            time.Nanosecond, // single verification poll in tests
		RetryMaxAttempts:  1,
		RetryInitialDelay: time.Millisecond,
	}
	return ctx
}

func TestFullBootstrap(t *testing.T) {
	rec := &recorder{}
	ctx := newTestContext(t, 1, 2, rec)
	rec.exec = allReadyExec(ctx.Run)

	err := bootstrap.RunPhases(ctx, All())
	require.NoError(t, err)

	// every host reached terminal success
	assert.True(t, ctx.Run.AllTerminalSuccess())
	assert.True(t, ctx.Run.CredentialIssued)
	for _, host := range ctx.Run.Snapshot().Hosts {
		assert.Equal(t, bootstrap.StateVerified, host.State, host.Name)
	}

	// no worker command before the control plane emitted the join command
	emitSeen := false
	for _, entry := range rec.commands() {
		if strings.Contains(entry.Command, "token create") {
			emitSeen = true
			continue
		}
		if strings.HasPrefix(entry.Host, "demo-worker") {
			assert.True(t, emitSeen,
				"worker %s ran %q before the join credential was issued", entry.Host, entry.Command)
		}
	}
	assert.True(t, emitSeen)
}

func TestWorkerFailureDoesNotAbortSiblings(t *testing.T) {
	rec := &recorder{}
	ctx := newTestContext(t, 1, 2, rec)
	rec.exec = func(host, command string) (*bootstrap.ExecResult, error) {
		if host == "demo-worker-1" && strings.Contains(command, "worker-join") {
			return &bootstrap.ExecResult{ExitStatus: 1, Stderr: "join failed"}, nil
		}
		if strings.Contains(command, "token create") {
			return &bootstrap.ExecResult{Stdout: joinCommand}, nil
		}
		if strings.Contains(command, "get nodes") {
			return &bootstrap.ExecResult{Stdout: strings.Join([]string{
				"demo-control-plane-1   Ready   control-plane   5m   v1.31.4",
				"demo-worker-2   Ready   <none>   2m   v1.31.4",
			}, "\n")}, nil
		}
		return &bootstrap.ExecResult{}, nil
	}

	err := bootstrap.RunPhases(ctx, All())
	require.NoError(t, err, "a single worker failure must not fail the run")

	assert.Equal(t, bootstrap.StateFailed, ctx.Run.HostByName("demo-worker-1").State)
	assert.Contains(t, ctx.Run.HostByName("demo-worker-1").LastError, "join failed")
	assert.Equal(t, bootstrap.StateVerified, ctx.Run.HostByName("demo-worker-2").State)
	assert.Equal(t, bootstrap.StateVerified, ctx.Run.HostByName("demo-control-plane-1").State)
	assert.False(t, ctx.Run.AllTerminalSuccess())
}

func TestControlPlaneFailureHaltsRun(t *testing.T) {
	rec := &recorder{}
	ctx := newTestContext(t, 1, 1, rec)
	rec.exec = func(host, command string) (*bootstrap.ExecResult, error) {
		if strings.Contains(command, "control-plane-init") {
			return &bootstrap.ExecResult{ExitStatus: 1, Stderr: "kubeadm init failed"}, nil
		}
		return &bootstrap.ExecResult{}, nil
	}

	err := bootstrap.RunPhases(ctx, All())
	require.Error(t, err)
	assert.True(t, bootstrap.IsRemoteCommand(err))

	assert.Equal(t, bootstrap.StateFailed, ctx.Run.HostByName("demo-control-plane-1").State)
	// the worker phase never ran
	worker := ctx.Run.HostByName("demo-worker-1")
	assert.Equal(t, bootstrap.StateProvisioned, worker.State)
	assert.Empty(t, ctx.Run.Log("demo-worker-1"))
}

func TestWorkersWithoutCredentialIsOrderingViolation(t *testing.T) {
	rec := &recorder{}
	ctx := newTestContext(t, 1, 1, rec)
	ctx.Run.AddHost(&bootstrap.Host{
		Name:  "demo-worker-1",
		Role:  bootstrap.RoleWorker,
		State: bootstrap.StateProvisioned,
	})

	phase := &ConfigureWorkers{}
	err := phase.Run(ctx)

	require.Error(t, err)
	assert.True(t, errors.Is(err, bootstrap.ErrOrderingViolation))
	assert.Empty(t, rec.commands(), "no remote call may happen without a credential")
}

func TestWorkerResumeSkipsCompletedPrefix(t *testing.T) {
	rec := &recorder{}
	ctx := newTestContext(t, 1, 1, rec)
	rec.exec = allReadyExec(ctx.Run)

	worker := ctx.Run.AddHost(&bootstrap.Host{
		Name:  "demo-worker-1",
		Role:  bootstrap.RoleWorker,
		State: bootstrap.StateProvisioned,
	})
	// base prep (indices 0-2) completed in an interrupted earlier run
	for i := 0; i < 3; i++ {
		ctx.Run.Append(worker.Name, bootstrap.Record{
			Index:   i,
			Outcome: bootstrap.OutcomeSucceeded,
		})
	}
	require.NoError(t, ctx.Credentials.Set(bootstrap.Credential{
		Token:      joinCommand,
		IssuerHost: "demo-control-plane-1",
	}))

	phase := &ConfigureWorkers{}
	require.NoError(t, phase.Run(ctx))

	assert.Equal(t, bootstrap.StateJoined, ctx.Run.HostByName(worker.Name).State)

	// only the join command ran remotely; node prep was not repeated
	var workerCommands []string
	for _, entry := range rec.commands() {
		if entry.Host == worker.Name {
			workerCommands = append(workerCommands, entry.Command)
		}
	}
	require.Len(t, workerCommands, 1)
	assert.Contains(t, workerCommands[0], "worker-join")
}

func TestWorkerIsJoinPendingWhileJoinRuns(t *testing.T) {
	rec := &recorder{}
	ctx := newTestContext(t, 1, 1, rec)

	var stateAtJoin bootstrap.HostState
	rec.exec = func(host, command string) (*bootstrap.ExecResult, error) {
		if strings.Contains(command, "worker-join") {
			stateAtJoin = ctx.Run.HostByName(host).State
		}
		return allReadyExec(ctx.Run)(host, command)
	}

	ctx.Run.AddHost(&bootstrap.Host{
		Name:  "demo-worker-1",
		Role:  bootstrap.RoleWorker,
		State: bootstrap.StateProvisioned,
	})
	require.NoError(t, ctx.Credentials.Set(bootstrap.Credential{
		Token:      joinCommand,
		IssuerHost: "demo-control-plane-1",
	}))

	phase := &ConfigureWorkers{}
	require.NoError(t, phase.Run(ctx))

	assert.Equal(t, bootstrap.StateJoinPending, stateAtJoin,
		"the join command must run against a host in join-pending")
	assert.Equal(t, bootstrap.StateJoined, ctx.Run.HostByName("demo-worker-1").State)
}

func TestResumedWorkerRerendersJoinScript(t *testing.T) {
	rec := &recorder{}
	ctx := newTestContext(t, 1, 1, rec)
	rec.exec = allReadyExec(ctx.Run)

	worker := ctx.Run.AddHost(&bootstrap.Host{
		Name:  "demo-worker-1",
		Role:  bootstrap.RoleWorker,
		State: bootstrap.StateProvisioned,
	})
	// an earlier run prepped the node, rendered and uploaded the join script,
	// but was interrupted before the join command succeeded
	for i := 0; i < 5; i++ {
		ctx.Run.Append(worker.Name, bootstrap.Record{
			Index:   i,
			Outcome: bootstrap.OutcomeSucceeded,
		})
	}
	require.NoError(t, ctx.Credentials.Set(bootstrap.Credential{
		Token:      joinCommand,
		IssuerHost: "demo-control-plane-1",
	}))

	phase := &ConfigureWorkers{}
	require.NoError(t, phase.Run(ctx))
	assert.Equal(t, bootstrap.StateJoined, ctx.Run.HostByName(worker.Name).State)

	// the staged script embedded the previous run's token: generation and
	// upload re-ran with the fresh credential, the prep prefix did not
	log := ctx.Run.Log(worker.Name)
	var replayed []int
	for _, r := range log[5:] {
		replayed = append(replayed, r.Index)
	}
	assert.Equal(t, []int{3, 4, 5}, replayed)
}

func TestConfiguredControlPlaneRederivesCredential(t *testing.T) {
	rec := &recorder{}
	ctx := newTestContext(t, 1, 1, rec)
	rec.exec = allReadyExec(ctx.Run)

	cp := ctx.Run.AddHost(&bootstrap.Host{
		Name:  "demo-control-plane-1",
		Role:  bootstrap.RoleControlPlane,
		State: bootstrap.StateConfigured,
	})
	ctx.Run.AddHost(&bootstrap.Host{
		Name:  "demo-worker-1",
		Role:  bootstrap.RoleWorker,
		State: bootstrap.StateProvisioned,
	})
	// full control plane plan already completed (7 operations)
	for i := 0; i < 7; i++ {
		ctx.Run.Append(cp.Name, bootstrap.Record{Index: i, Outcome: bootstrap.OutcomeSucceeded})
	}

	phase := &ConfigureControlPlane{}
	require.NoError(t, phase.Run(ctx))

	// a fresh process holds no credential in memory; only the emitting
	// operation may be re-run
	cmds := rec.commands()
	require.Len(t, cmds, 1)
	assert.Contains(t, cmds[0].Command, "token create")

	cred := ctx.Credentials.Get()
	require.NotNil(t, cred)
	assert.Equal(t, joinCommand, cred.Token)
	assert.Equal(t, cp.Name, cred.IssuerHost)
}

func TestFullyVerifiedClusterSkipsCredential(t *testing.T) {
	rec := &recorder{}
	ctx := newTestContext(t, 1, 1, rec)

	cp := ctx.Run.AddHost(&bootstrap.Host{
		Name:  "demo-control-plane-1",
		Role:  bootstrap.RoleControlPlane,
		State: bootstrap.StateVerified,
	})
	ctx.Run.AddHost(&bootstrap.Host{
		Name:  "demo-worker-1",
		Role:  bootstrap.RoleWorker,
		State: bootstrap.StateVerified,
	})
	for i := 0; i < 7; i++ {
		ctx.Run.Append(cp.Name, bootstrap.Record{Index: i, Outcome: bootstrap.OutcomeSucceeded})
	}

	phase := &ConfigureControlPlane{}
	require.NoError(t, phase.Run(ctx))

	assert.Empty(t, rec.commands(), "nothing to do means no remote calls")
	assert.Nil(t, ctx.Credentials.Get())
}

func TestVerifyMarksUnreadyNodesFailed(t *testing.T) {
	rec := &recorder{}
	ctx := newTestContext(t, 1, 1, rec)
	rec.exec = func(host, command string) (*bootstrap.ExecResult, error) {
		return &bootstrap.ExecResult{
			Stdout: "demo-control-plane-1   Ready   control-plane   5m   v1.31.4\n" +
				"demo-worker-1   NotReady   <none>   1m   v1.31.4",
		}, nil
	}

	ctx.Run.AddHost(&bootstrap.Host{
		Name: "demo-control-plane-1", Role: bootstrap.RoleControlPlane, State: bootstrap.StateConfigured,
	})
	ctx.Run.AddHost(&bootstrap.Host{
		Name: "demo-worker-1", Role: bootstrap.RoleWorker, State: bootstrap.StateJoined,
	})

	phase := &Verify{}
	require.NoError(t, phase.Run(ctx))

	assert.Equal(t, bootstrap.StateVerified, ctx.Run.HostByName("demo-control-plane-1").State)
	assert.Equal(t, bootstrap.StateFailed, ctx.Run.HostByName("demo-worker-1").State)
}

func TestVerifyRecordsItsCommands(t *testing.T) {
	rec := &recorder{}
	ctx := newTestContext(t, 1, 1, rec)
	rec.exec = allReadyExec(ctx.Run)

	ctx.Run.AddHost(&bootstrap.Host{
		Name: "demo-control-plane-1", Role: bootstrap.RoleControlPlane, State: bootstrap.StateConfigured,
	})
	ctx.Run.AddHost(&bootstrap.Host{
		Name: "demo-worker-1", Role: bootstrap.RoleWorker, State: bootstrap.StateJoined,
	})

	phase := &Verify{}
	require.NoError(t, phase.Run(ctx))

	// every verification command shows up in the control plane's log
	var ops []string
	for _, r := range ctx.Run.Log("demo-control-plane-1") {
		ops = append(ops, r.Operation)
		assert.Equal(t, bootstrap.OpRemoteCommand, r.Kind)
		assert.Equal(t, bootstrap.OutcomeSucceeded, r.Outcome)
	}
	assert.Equal(t, []string{"verify node readiness", "verify system pods", "verify server version"}, ops)
	assert.Empty(t, ctx.Run.Log("demo-worker-1"), "verification runs on the control plane only")
}

func TestVerifyFailsWithoutControlPlane(t *testing.T) {
	rec := &recorder{}
	ctx := newTestContext(t, 1, 0, rec)
	ctx.Run.AddHost(&bootstrap.Host{
		Name: "demo-control-plane-1", Role: bootstrap.RoleControlPlane, State: bootstrap.StateFailed,
	})

	phase := &Verify{}
	err := phase.Run(ctx)
	assert.ErrorContains(t, err, "no configured control plane")
}

func TestParseReadyNodes(t *testing.T) {
	output := `demo-control-plane-1   Ready      control-plane   10m   v1.31.4
demo-worker-1          Ready      <none>          5m    v1.31.4
demo-worker-2          NotReady   <none>          1m    v1.31.4

`
	ready := parseReadyNodes(output)
	assert.True(t, ready["demo-control-plane-1"])
	assert.True(t, ready["demo-worker-1"])
	assert.False(t, ready["demo-worker-2"])
	assert.Len(t, ready, 2)
}
