// Package orchestrator drives complete bootstrap and teardown runs: it
// loads or creates the persisted run, executes the phase pipeline, and
// persists the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
	"github.com/kubeboot/kubeboot/internal/bootstrap/phases"
	"github.com/kubeboot/kubeboot/internal/config"
	"github.com/kubeboot/kubeboot/internal/state"
)

// Orchestrator wires configuration and collaborators into runs.
type Orchestrator struct {
	cfg      *config.Config
	infra    bootstrap.Provisioner
	channels bootstrap.ChannelFactory
	scripts  bootstrap.ScriptGenerator
	states   bootstrap.StateStore

	// Observer and Timeouts may be set before the first run to override
	// the defaults.
	Observer bootstrap.Observer
	Timeouts *config.Timeouts
}

// New creates an orchestrator.
func New(
	cfg *config.Config,
	infra bootstrap.Provisioner,
	channels bootstrap.ChannelFactory,
	scripts bootstrap.ScriptGenerator,
	states bootstrap.StateStore,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		infra:    infra,
		channels: channels,
		scripts:  scripts,
		states:   states,
	}
}

// Result summarizes one bootstrap invocation.
type Result struct {
	Run      *bootstrap.Run
	Resumed  bool
	Skipped  bool // every host was already at terminal success
	Duration time.Duration
}

// FailedHosts returns the hosts that ended the run in a failed state.
func (r *Result) FailedHosts() []*bootstrap.Host {
	var failed []*bootstrap.Host
	for _, host := range r.Run.Hosts {
		if host.State == bootstrap.StateFailed {
			failed = append(failed, host)
		}
	}
	return failed
}

// Bootstrap executes a full bootstrap run. Re-invoking against a cluster
// whose every host already reached terminal success performs no remote call
// at all; re-invoking after a partial failure resumes where the previous run
// stopped.
func (o *Orchestrator) Bootstrap(ctx context.Context) (*Result, error) {
	start := time.Now()

	run, resumed, err := o.loadOrCreateRun(ctx)
	if err != nil {
		return nil, err
	}

	bctx := o.newContext(ctx, run)

	if run.AllTerminalSuccess() {
		bctx.Observer.Printf("cluster %s is already fully bootstrapped, nothing to do", o.cfg.ClusterName)
		return &Result{
			Run:      run.Snapshot(),
			Resumed:  resumed,
			Skipped:  true,
			Duration: time.Since(start),
		}, nil
	}

	pipelineErr := bootstrap.RunPhases(bctx, phases.All())
	bctx.Persist()

	result := &Result{
		Run:      run.Snapshot(),
		Resumed:  resumed,
		Duration: time.Since(start),
	}
	if pipelineErr != nil {
		return result, pipelineErr
	}
	return result, nil
}

// TeardownResult summarizes one teardown invocation.
type TeardownResult struct {
	Hosts        []bootstrap.Host // recorded hosts handed to the destroy call
	StateCleared bool
	Duration     time.Duration
}

// Teardown destroys all infrastructure of the cluster in one provisioning
// call, whether or not a bootstrap ever completed. The recorded run is
// removed only after the destroy succeeded, so a partial teardown can be
// re-invoked.
func (o *Orchestrator) Teardown(ctx context.Context) (*TeardownResult, error) {
	start := time.Now()
	result := &TeardownResult{}

	run, err := o.states.Load(ctx, o.cfg.ClusterName)
	switch {
	case errors.Is(err, state.ErrNotFound):
		// no recorded run; the provisioner still sweeps by label
	case err != nil:
		return nil, fmt.Errorf("failed to load run state: %w", err)
	default:
		for _, host := range run.Snapshot().Hosts {
			result.Hosts = append(result.Hosts, *host)
		}
	}

	if err := o.infra.Destroy(ctx, o.cfg, result.Hosts); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	if err := o.states.Delete(ctx, o.cfg.ClusterName); err != nil {
		result.Duration = time.Since(start)
		return result, fmt.Errorf("infrastructure destroyed but state cleanup failed: %w", err)
	}

	result.StateCleared = true
	result.Duration = time.Since(start)
	return result, nil
}

func (o *Orchestrator) loadOrCreateRun(ctx context.Context) (*bootstrap.Run, bool, error) {
	run, err := o.states.Load(ctx, o.cfg.ClusterName)
	if err == nil {
		return run, true, nil
	}
	if !errors.Is(err, state.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to load run state: %w", err)
	}

	run = bootstrap.NewRun(o.cfg.ClusterName, bootstrap.Topology{
		ControlPlanes: o.cfg.ControlPlane.Count,
		Workers:       o.cfg.Workers.Count,
	})
	return run, false, nil
}

func (o *Orchestrator) newContext(ctx context.Context, run *bootstrap.Run) *bootstrap.Context {
	bctx := bootstrap.NewContext(ctx, o.cfg, o.infra, o.channels, o.scripts, o.states)
	bctx.Run = run
	if o.Observer != nil {
		bctx.Observer = o.Observer
	}
	if o.Timeouts != nil {
		bctx.Timeouts = o.Timeouts
	}
	return bctx
}
