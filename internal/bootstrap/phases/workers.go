package phases

import (
	"context"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
	"github.com/kubeboot/kubeboot/internal/configurator"
	"github.com/kubeboot/kubeboot/internal/util/async"
)

// ConfigureWorkers joins all pending workers concurrently. One worker's
// failure marks that host failed but never aborts its siblings; the run
// proceeds to verification with whatever joined.
type ConfigureWorkers struct{}

// Name implements bootstrap.Phase.
func (p *ConfigureWorkers) Name() string { return "configure-workers" }

// Run implements bootstrap.Phase.
func (p *ConfigureWorkers) Run(ctx *bootstrap.Context) error {
	var pending []*bootstrap.Host
	for _, host := range ctx.Run.HostsByRole(bootstrap.RoleWorker) {
		if !host.State.TerminalSuccess() {
			pending = append(pending, host)
		}
	}
	if len(pending) == 0 {
		ctx.Observer.Printf("no workers pending, skipping")
		return nil
	}

	// Workers must never start before the control plane has issued the join
	// credential. The pipeline runs phases strictly in order, so by this
	// point the credential exists; its absence is an internal invariant
	// failure, not a condition to wait out.
	if ctx.Credentials.Get() == nil {
		return bootstrap.OrderingViolation("%d workers pending but no join credential issued", len(pending))
	}
	cred, err := ctx.Credentials.Wait(ctx, ctx.Timeouts.CredentialWait)
	if err != nil {
		return bootstrap.OrderingViolation("join credential unavailable: %v", err)
	}

	cfg := newConfigurator(ctx)
	tasks := make([]async.Task, 0, len(pending))
	for _, host := range pending {
		tasks = append(tasks, async.Task{
			Name: host.Name,
			Func: func(taskCtx context.Context) error {
				return p.joinWorker(ctx, cfg, *host, cred.Token, taskCtx)
			},
		})
	}

	results := async.RunParallel(ctx, tasks)
	for _, res := range results {
		if res.Err != nil {
			bootstrap.LogHostFailed(ctx.Observer, p.Name(), res.Name, res.Err)
		}
	}
	bootstrap.RecordHostStates(ctx.Run)

	// failed workers are recorded on their hosts; the phase itself succeeds
	// so verification can assess what did join
	return nil
}

func (p *ConfigureWorkers) joinWorker(
	ctx *bootstrap.Context,
	cfg *configurator.Configurator,
	host bootstrap.Host,
	joinCommand string,
	taskCtx context.Context,
) error {
	if err := ctx.Run.SetHostState(host.Name, bootstrap.StateConfiguring); err != nil {
		return err
	}
	bootstrap.LogHostState(ctx.Observer, p.Name(), host.Name, bootstrap.StateConfiguring)

	plan := configurator.WorkerPlan(ctx.Config, host, stagingDir(ctx.Config, host.Name), joinCommand)
	refresh := configurator.JoinRefreshIndex(plan)

	resume := ctx.Run.ResumeIndex(host.Name)
	if resume > refresh {
		// the staged join script embeds the previous run's token; re-render
		// and re-upload it with the credential held now
		resume = refresh
	}

	if resume < refresh {
		outcome := cfg.Configure(taskCtx, host, plan[:refresh], resume)
		if outcome.Err != nil {
			ctx.Run.MarkHostFailed(host.Name, outcome.Err)
			return outcome.Err
		}
	}

	if err := ctx.Run.SetHostState(host.Name, bootstrap.StateJoinPending); err != nil {
		return err
	}
	bootstrap.LogHostState(ctx.Observer, p.Name(), host.Name, bootstrap.StateJoinPending)

	outcome := cfg.Configure(taskCtx, host, plan, refresh)
	if outcome.Err != nil {
		ctx.Run.MarkHostFailed(host.Name, outcome.Err)
		return outcome.Err
	}

	if err := ctx.Run.SetHostState(host.Name, bootstrap.StateJoined); err != nil {
		return err
	}
	bootstrap.LogHostState(ctx.Observer, p.Name(), host.Name, bootstrap.StateJoined)
	return nil
}
