package phases

import (
	"fmt"
	"time"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
	"github.com/kubeboot/kubeboot/internal/configurator"
)

// ConfigureControlPlane initialises the primary control plane and captures
// the cluster join credential. A control plane that already completed its
// plan in an earlier run is not touched again except to re-derive the join
// credential when workers are still pending.
type ConfigureControlPlane struct{}

// Name implements bootstrap.Phase.
func (p *ConfigureControlPlane) Name() string { return "configure-control-plane" }

// Run implements bootstrap.Phase.
func (p *ConfigureControlPlane) Run(ctx *bootstrap.Context) error {
	controlPlanes := ctx.Run.HostsByRole(bootstrap.RoleControlPlane)
	if len(controlPlanes) == 0 {
		return fmt.Errorf("no control plane hosts recorded")
	}

	primary := controlPlanes[0]
	cfg := newConfigurator(ctx)
	plan := configurator.ControlPlanePlan(ctx.Config, *primary, stagingDir(ctx.Config, primary.Name))

	resume := ctx.Run.ResumeIndex(primary.Name)
	needCredential := p.pendingWorkers(ctx) > 0

	switch {
	case resume < len(plan):
		// fresh or partially configured control plane
		if err := ctx.Run.SetHostState(primary.Name, bootstrap.StateConfiguring); err != nil {
			return err
		}
		bootstrap.LogHostState(ctx.Observer, p.Name(), primary.Name, bootstrap.StateConfiguring)

		outcome := cfg.Configure(ctx, *primary, plan, resume)
		if outcome.Err != nil {
			ctx.Run.MarkHostFailed(primary.Name, outcome.Err)
			bootstrap.LogHostFailed(ctx.Observer, p.Name(), primary.Name, outcome.Err)
			return outcome.Err
		}
		if err := p.captureCredential(ctx, primary.Name, outcome.Artifacts[configurator.ArtifactJoinCommand]); err != nil {
			return err
		}

	case needCredential:
		// already configured but workers still need to join: re-run only the
		// emitting operation to derive a fresh credential
		outcome := cfg.Configure(ctx, *primary, plan, len(plan)-1)
		if outcome.Err != nil {
			return fmt.Errorf("failed to re-derive join credential from %s: %w", primary.Name, outcome.Err)
		}
		if err := p.captureCredential(ctx, primary.Name, outcome.Artifacts[configurator.ArtifactJoinCommand]); err != nil {
			return err
		}

	default:
		ctx.Observer.Printf("control plane %s already configured, nothing to do", primary.Name)
	}

	if !primary.State.TerminalSuccess() {
		if err := ctx.Run.SetHostState(primary.Name, bootstrap.StateConfigured); err != nil {
			return err
		}
		bootstrap.LogHostState(ctx.Observer, p.Name(), primary.Name, bootstrap.StateConfigured)
	}

	// additional control planes only receive base preparation until
	// multi-control-plane join is supported
	for _, host := range controlPlanes[1:] {
		if host.State.TerminalSuccess() {
			continue
		}
		if err := ctx.Run.SetHostState(host.Name, bootstrap.StateConfiguring); err != nil {
			return err
		}
		base := configurator.BasePlan(ctx.Config, *host, stagingDir(ctx.Config, host.Name))
		outcome := cfg.Configure(ctx, *host, base, ctx.Run.ResumeIndex(host.Name))
		if outcome.Err != nil {
			ctx.Run.MarkHostFailed(host.Name, outcome.Err)
			bootstrap.LogHostFailed(ctx.Observer, p.Name(), host.Name, outcome.Err)
			return outcome.Err
		}
		if err := ctx.Run.SetHostState(host.Name, bootstrap.StateConfigured); err != nil {
			return err
		}
	}

	bootstrap.RecordHostStates(ctx.Run)
	return nil
}

func (p *ConfigureControlPlane) captureCredential(ctx *bootstrap.Context, issuer, token string) error {
	if token == "" {
		return fmt.Errorf("control plane %s emitted an empty join command", issuer)
	}
	if err := ctx.Credentials.Set(bootstrap.Credential{
		Token:      token,
		IssuedAt:   time.Now().UTC(),
		IssuerHost: issuer,
	}); err != nil {
		return err
	}
	ctx.Run.SetCredentialIssued()
	ctx.Observer.Event(bootstrap.Event{
		Type:    bootstrap.EventCredential,
		Phase:   p.Name(),
		Host:    issuer,
		Message: "join credential captured",
	})
	return nil
}

func (p *ConfigureControlPlane) pendingWorkers(ctx *bootstrap.Context) int {
	pending := 0
	for _, host := range ctx.Run.HostsByRole(bootstrap.RoleWorker) {
		if !host.State.TerminalSuccess() {
			pending++
		}
	}
	return pending
}
