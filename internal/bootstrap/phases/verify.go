package phases

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
)

const (
	nodesCommand      = "KUBECONFIG=/etc/kubernetes/admin.conf kubectl get nodes --no-headers"
	systemPodsCommand = "KUBECONFIG=/etc/kubernetes/admin.conf kubectl get pods -n kube-system --no-headers"
	versionCommand    = "KUBECONFIG=/etc/kubernetes/admin.conf kubectl version"

	adminKubeconfig = "/etc/kubernetes/admin.conf"

	verifyPollInterval = 5 * time.Second
)

// Verify confirms through the control plane that every configured host has
// registered as a ready node, then downloads the admin kubeconfig. Hosts that
// never become ready within the verification window are marked failed; the
// phase itself fails only when the control plane cannot be verified at all.
type Verify struct{}

// Name implements bootstrap.Phase.
func (p *Verify) Name() string { return "verify" }

// Run implements bootstrap.Phase.
func (p *Verify) Run(ctx *bootstrap.Context) error {
	primary := p.primaryControlPlane(ctx.Run)
	if primary == nil {
		return fmt.Errorf("no configured control plane to verify against")
	}

	channel, err := ctx.Channels(*primary)
	if err != nil {
		return &bootstrap.TransportError{Host: primary.Name, Err: err}
	}

	pending := p.candidates(ctx.Run)
	deadline := time.Now().Add(ctx.Timeouts.Verify)

	for len(pending) > 0 {
		started := time.Now().UTC()
		result, execErr := channel.Execute(ctx, nodesCommand, ctx.Timeouts.RemoteCommand)
		p.recordVerification(ctx, primary.Name, "verify node readiness", started, execErr, result)
		if execErr == nil && result.ExitStatus == 0 {
			ready := parseReadyNodes(result.Stdout)
			for name := range pending {
				if !ready[name] {
					continue
				}
				if err := ctx.Run.SetHostState(name, bootstrap.StateVerified); err != nil {
					return err
				}
				bootstrap.LogHostState(ctx.Observer, p.Name(), name, bootstrap.StateVerified)
				delete(pending, name)
			}
		}

		if len(pending) == 0 || time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("verification cancelled: %w", ctx.Err())
		case <-time.After(verifyPollInterval):
		}
	}

	for name := range pending {
		err := errors.New("node did not become ready within the verification window")
		ctx.Run.MarkHostFailed(name, err)
		bootstrap.LogHostFailed(ctx.Observer, p.Name(), name, err)
	}
	bootstrap.RecordHostStates(ctx.Run)

	if host := ctx.Run.HostByName(primary.Name); host == nil || host.State != bootstrap.StateVerified {
		return fmt.Errorf("control plane %s failed verification", primary.Name)
	}

	p.reportClusterInfo(ctx, primary.Name, channel)

	// best effort: losing the local kubeconfig copy does not fail the run
	dest := kubeconfigPath(ctx.Config)
	if err := channel.Download(ctx, adminKubeconfig, dest, false); err != nil {
		ctx.Observer.Printf("warning: failed to download kubeconfig: %v", err)
	} else {
		ctx.Observer.Printf("admin kubeconfig written to %s", dest)
	}
	return nil
}

// reportClusterInfo runs the informational checks against the verified
// control plane: system pod settlement and the server version. Both are
// reported, not gated on; node readiness is the verification criterion.
func (p *Verify) reportClusterInfo(ctx *bootstrap.Context, primary string, channel bootstrap.RemoteChannel) {
	started := time.Now().UTC()
	result, err := channel.Execute(ctx, systemPodsCommand, ctx.Timeouts.RemoteCommand)
	p.recordVerification(ctx, primary, "verify system pods", started, err, result)
	if err == nil && result.ExitStatus == 0 {
		total, settled := countSettledPods(result.Stdout)
		if total > 0 && settled < total {
			ctx.Observer.Printf("kube-system still settling: %d/%d pods running", settled, total)
		}
	}

	started = time.Now().UTC()
	result, err = channel.Execute(ctx, versionCommand, ctx.Timeouts.RemoteCommand)
	p.recordVerification(ctx, primary, "verify server version", started, err, result)
	if err == nil && result.ExitStatus == 0 {
		for _, line := range strings.Split(strings.TrimSpace(result.Stdout), "\n") {
			if strings.HasPrefix(line, "Server Version:") {
				ctx.Observer.Printf("%s", line)
			}
		}
	}
}

// recordVerification appends one executed verification command to the control
// plane's operation log, so the log stays a complete account of every remote
// command the run issued. Indices continue past the configuration plan.
func (p *Verify) recordVerification(
	ctx *bootstrap.Context,
	host, operation string,
	started time.Time,
	execErr error,
	result *bootstrap.ExecResult,
) {
	rec := bootstrap.Record{
		Index:      len(ctx.Run.Log(host)),
		Operation:  operation,
		Kind:       bootstrap.OpRemoteCommand,
		Outcome:    bootstrap.OutcomeSucceeded,
		Attempts:   1,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	switch {
	case execErr != nil:
		rec.Outcome = bootstrap.OutcomeFailed
		rec.Error = execErr.Error()
	case result.ExitStatus != 0:
		rec.Outcome = bootstrap.OutcomeFailed
		rec.Error = fmt.Sprintf("exit status %d", result.ExitStatus)
	}
	ctx.Run.Append(host, rec)
	bootstrap.RecordOperation(ctx.Run.ClusterName, rec.Kind, rec.Outcome)
}

// countSettledPods parses `kubectl get pods --no-headers` output and counts
// pods whose status column reads Running or Completed.
func countSettledPods(output string) (total, settled int) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		total++
		if fields[2] == "Running" || fields[2] == "Completed" {
			settled++
		}
	}
	return total, settled
}

// primaryControlPlane returns the control plane to verify through: the first
// one that reached configured or better.
func (p *Verify) primaryControlPlane(run *bootstrap.Run) *bootstrap.Host {
	for _, host := range run.HostsByRole(bootstrap.RoleControlPlane) {
		switch host.State {
		case bootstrap.StateConfigured, bootstrap.StateJoined, bootstrap.StateVerified:
			return host
		}
	}
	return nil
}

// candidates are hosts that completed their configuration and now must show
// up as ready nodes. Already-verified hosts re-enter so a resumed run
// re-confirms them cheaply from the same node listing.
func (p *Verify) candidates(run *bootstrap.Run) map[string]bool {
	pending := make(map[string]bool)
	for _, host := range run.Snapshot().Hosts {
		switch host.State {
		case bootstrap.StateConfigured, bootstrap.StateJoined, bootstrap.StateVerified:
			pending[host.Name] = true
		}
	}
	return pending
}

// parseReadyNodes extracts ready node names from `kubectl get nodes
// --no-headers` output. Lines look like:
//
//	demo-worker-1   Ready   <none>   2m   v1.31.4
func parseReadyNodes(output string) map[string]bool {
	ready := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if fields[1] == "Ready" {
			ready[fields[0]] = true
		}
	}
	return ready
}
