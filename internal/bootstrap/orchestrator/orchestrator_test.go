package orchestrator

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
	"github.com/kubeboot/kubeboot/internal/state"
	"github.com/kubeboot/kubeboot/internal/util/naming"
)

const joinCommand = "kubeadm join 10.0.0.2:6443 --token abc.def --discovery-token-ca-cert-hash sha256:1234"

type fakeInfra struct {
	mu         sync.Mutex
	provisions int
	destroys   int
	destroyed  []bootstrap.Host
	destroyErr error
}

func (f *fakeInfra) Provision(_ context.Context, cfg *config.Config) ([]bootstrap.Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.provisions++

	var hosts []bootstrap.Host
	for i := 0; i < cfg.ControlPlane.Count; i++ {
		hosts = append(hosts, bootstrap.Host{
			ID:    fmt.Sprintf("%d", i+1),
			Name:  naming.ControlPlane(cfg.ClusterName, i),
			Role:  bootstrap.RoleControlPlane,
			State: bootstrap.StateProvisioned,
		})
	}
	for i := 0; i < cfg.Workers.Count; i++ {
		hosts = append(hosts, bootstrap.Host{
			ID:    fmt.Sprintf("%d", 100+i),
			Name:  naming.Worker(cfg.ClusterName, i),
			Role:  bootstrap.RoleWorker,
			State: bootstrap.StateProvisioned,
		})
	}
	return hosts, nil
}

func (f *fakeInfra) Destroy(_ context.Context, _ *config.Config, hosts []bootstrap.Host) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroys++
	f.destroyed = hosts
	return f.destroyErr
}

// fakeChannels counts how often a channel is opened and answers commands.
type fakeChannels struct {
	mu    sync.Mutex
	opens int
	exec  func(host, command string) (*bootstrap.ExecResult, error)
}

func (f *fakeChannels) factory() bootstrap.ChannelFactory {
	return func(host bootstrap.Host) (bootstrap.RemoteChannel, error) {
		f.mu.Lock()
		f.opens++
		f.mu.Unlock()
		return &fakeChannel{host: host.Name, parent: f}, nil
	}
}

func (f *fakeChannels) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

type fakeChannel struct {
	host   string
	parent *fakeChannels
}

func (c *fakeChannel) Execute(_ context.Context, command string, _ time.Duration) (*bootstrap.ExecResult, error) {
	if c.parent.exec != nil {
		return c.parent.exec(c.host, command)
	}
	return &bootstrap.ExecResult{}, nil
}

func (c *fakeChannel) Upload(context.Context, string, string, bool) error   { return nil }
func (c *fakeChannel) Download(context.Context, string, string, bool) error { return nil }

func happyExec(host, command string) (*bootstrap.ExecResult, error) {
	if strings.Contains(command, "token create") {
		return &bootstrap.ExecResult{Stdout: joinCommand}, nil
	}
	if strings.Contains(command, "get nodes") {
		return &bootstrap.ExecResult{Stdout: strings.Join([]string{
			"demo-control-plane-1   Ready   control-plane   5m   v1.31.4",
			"demo-worker-1   Ready   <none>   2m   v1.31.4",
		}, "\n")}, nil
	}
	return &bootstrap.ExecResult{}, nil
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		ClusterName:  "demo",
		Location:     "nbg1",
		ControlPlane: config.NodeGroup{Count: 1, ServerType: "cx32"},
		Workers:      config.NodeGroup{Count: 1, ServerType: "cx42"},
		Kubernetes: config.KubernetesConfig{
			Version:        "1.31.4",
			PodNetworkCIDR: "10.244.0.0/16",
			ServiceCIDR:    "10.96.0.0/12",
		},
		State: config.StateConfig{Dir: t.TempDir()},
	}
}

func fastTimeouts() *config.Timeouts {
	return &config.Timeouts{
		Provision:         time.Minute,
		Destroy:           time.Minute,
		RemoteCommand:     time.Second,
		FileTransfer:      time.Second,
		CredentialWait:    time.Second,
		Verify:            time.Nanosecond,
		RetryMaxAttempts:  1,
		RetryInitialDelay: time.Millisecond,
	}
}

func newOrchestrator(cfg *config.Config, infra *fakeInfra, channels *fakeChannels, store bootstrap.StateStore) *Orchestrator {
	o := New(cfg, infra, channels.factory(), scripts.NewGenerator(), store)
	o.Timeouts = fastTimeouts()
	return o
}

func TestBootstrapPersistsCompletedRun(t *testing.T) {
	cfg := testConfig(t)
	store := state.NewFileStore(cfg.State.Dir)
	infra := &fakeInfra{}
	channels := &fakeChannels{exec: happyExec}

	o := newOrchestrator(cfg, infra, channels, store)
	result, err := o.Bootstrap(context.Background())

	require.NoError(t, err)
	assert.False(t, result.Resumed)
	assert.False(t, result.Skipped)
	assert.True(t, result.Run.AllTerminalSuccess())
	assert.Empty(t, result.FailedHosts())

	persisted, err := store.Load(context.Background(), "demo")
	require.NoError(t, err)
	assert.True(t, persisted.AllTerminalSuccess())
	assert.True(t, persisted.CredentialIssued)
}

func TestRerunAfterSuccessMakesNoRemoteCalls(t *testing.T) {
	cfg := testConfig(t)
	store := state.NewFileStore(cfg.State.Dir)
	infra := &fakeInfra{}
	channels := &fakeChannels{exec: happyExec}

	o := newOrchestrator(cfg, infra, channels, store)
	_, err := o.Bootstrap(context.Background())
	require.NoError(t, err)

	opensAfterFirst := channels.openCount()
	provisionsAfterFirst := infra.provisions

	// a fresh orchestrator, as a new process invocation would create
	o2 := newOrchestrator(cfg, infra, channels, store)
	result, err := o2.Bootstrap(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.True(t, result.Resumed)
	assert.Equal(t, opensAfterFirst, channels.openCount(), "no channel may be opened on a no-op rerun")
	assert.Equal(t, provisionsAfterFirst, infra.provisions, "no provisioning on a no-op rerun")
}

func TestBootstrapResumesAfterWorkerFailure(t *testing.T) {
	cfg := testConfig(t)
	store := state.NewFileStore(cfg.State.Dir)
	infra := &fakeInfra{}

	// first run: the worker join command fails terminally
	channels := &fakeChannels{exec: func(host, command string) (*bootstrap.ExecResult, error) {
		if host == "demo-worker-1" && strings.Contains(command, "worker-join") {
			return &bootstrap.ExecResult{ExitStatus: 1, Stderr: "disk full"}, nil
		}
		return happyExec(host, command)
	}}

	o := newOrchestrator(cfg, infra, channels, store)
	result, err := o.Bootstrap(context.Background())
	require.NoError(t, err, "worker failures are isolated, the run completes")
	require.Len(t, result.FailedHosts(), 1)
	assert.Equal(t, "demo-worker-1", result.FailedHosts()[0].Name)

	// second run: the host recovered
	channels.exec = happyExec
	o2 := newOrchestrator(cfg, infra, channels, store)
	result, err = o2.Bootstrap(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Resumed)
	assert.True(t, result.Run.AllTerminalSuccess())
	assert.Empty(t, result.FailedHosts())

	// the worker resumed at its failure point instead of replaying the
	// whole plan: its prep operations were recorded exactly once
	persisted, err := store.Load(context.Background(), "demo")
	require.NoError(t, err)
	prepRuns := 0
	for _, rec := range persisted.Log("demo-worker-1") {
		if rec.Index == 0 {
			prepRuns++
		}
	}
	assert.Equal(t, 1, prepRuns)
}

func TestTeardownDestroysAndClearsState(t *testing.T) {
	cfg := testConfig(t)
	store := state.NewFileStore(cfg.State.Dir)
	infra := &fakeInfra{}
	channels := &fakeChannels{exec: happyExec}

	o := newOrchestrator(cfg, infra, channels, store)
	_, err := o.Bootstrap(context.Background())
	require.NoError(t, err)

	result, err := o.Teardown(context.Background())
	require.NoError(t, err)
	assert.True(t, result.StateCleared)

	assert.Equal(t, 1, infra.destroys)
	assert.Len(t, infra.destroyed, 2, "both recorded hosts passed to one destroy call")

	_, err = store.Load(context.Background(), "demo")
	assert.True(t, errors.Is(err, state.ErrNotFound))
}

func TestTeardownWithoutRecordedRun(t *testing.T) {
	cfg := testConfig(t)
	store := state.NewFileStore(cfg.State.Dir)
	infra := &fakeInfra{}
	channels := &fakeChannels{}

	o := newOrchestrator(cfg, infra, channels, store)
	result, err := o.Teardown(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Hosts)

	assert.Equal(t, 1, infra.destroys, "destroy still runs to sweep labelled strays")
	assert.Empty(t, infra.destroyed)
}

func TestTeardownKeepsStateWhenDestroyFails(t *testing.T) {
	cfg := testConfig(t)
	store := state.NewFileStore(cfg.State.Dir)
	infra := &fakeInfra{destroyErr: errors.New("server is locked")}
	channels := &fakeChannels{exec: happyExec}

	o := newOrchestrator(cfg, infra, channels, store)
	_, err := o.Bootstrap(context.Background())
	require.NoError(t, err)

	result, err := o.Teardown(context.Background())
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.StateCleared)

	// state survives so a re-invoked teardown still knows the hosts
	_, err = store.Load(context.Background(), "demo")
	assert.NoError(t, err)
}

func TestBootstrapHaltsOnControlPlaneFailure(t *testing.T) {
	cfg := testConfig(t)
	store := state.NewFileStore(cfg.State.Dir)
	infra := &fakeInfra{}
	channels := &fakeChannels{exec: func(host, command string) (*bootstrap.ExecResult, error) {
		if strings.Contains(command, "control-plane-init") {
			return &bootstrap.ExecResult{ExitStatus: 1, Stderr: "init failed"}, nil
		}
		return happyExec(host, command)
	}}

	o := newOrchestrator(cfg, infra, channels, store)
	result, err := o.Bootstrap(context.Background())

	require.Error(t, err)
	assert.True(t, bootstrap.IsRemoteCommand(err))

	// the partial run is persisted for later resume
	persisted, loadErr := store.Load(context.Background(), "demo")
	require.NoError(t, loadErr)
	assert.Equal(t, bootstrap.StateFailed, persisted.HostByName("demo-control-plane-1").State)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.FailedHosts())
}
