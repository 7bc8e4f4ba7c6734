package phases

import (
	"fmt"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
)

// Provision realizes the declared topology and records every resulting host
// in the run. Hosts already recorded from an earlier attempt are adopted
// in place.
type Provision struct{}

// Name implements bootstrap.Phase.
func (p *Provision) Name() string { return "provision" }

// Run implements bootstrap.Phase.
func (p *Provision) Run(ctx *bootstrap.Context) error {
	hosts, err := ctx.Infra.Provision(ctx, ctx.Config)
	if err != nil {
		return err
	}

	expected := ctx.Config.ControlPlane.Count + ctx.Config.Workers.Count
	if len(hosts) != expected {
		return fmt.Errorf("provisioner returned %d hosts, topology declares %d", len(hosts), expected)
	}

	for _, host := range hosts {
		recorded := ctx.Run.AddHost(&host)
		bootstrap.LogHostState(ctx.Observer, p.Name(), recorded.Name, recorded.State)
	}
	bootstrap.RecordHostStates(ctx.Run)
	return nil
}
