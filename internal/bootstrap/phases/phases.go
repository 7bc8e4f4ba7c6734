// Package phases contains the sequential stages of a bootstrap run:
// provision, configure the control plane, configure workers, verify.
//
// Each phase reads and mutates the shared run through the bootstrap context;
// the pipeline guarantees a phase only starts after its predecessor finished.
package phases

import (
	"path/filepath"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
	"github.com/kubeboot/kubeboot/internal/config"
	"github.com/kubeboot/kubeboot/internal/configurator"
	"github.com/kubeboot/kubeboot/internal/util/naming"
)

// All returns the phases of a full bootstrap, in execution order.
func All() []bootstrap.Phase {
	return []bootstrap.Phase{
		&Provision{},
		&ConfigureControlPlane{},
		&ConfigureWorkers{},
		&Verify{},
	}
}

func newConfigurator(ctx *bootstrap.Context) *configurator.Configurator {
	return &configurator.Configurator{
		Channels: ctx.Channels,
		Scripts:  ctx.Scripts,
		Run:      ctx.Run,
		Observer: ctx.Observer,
		Timeouts: ctx.Timeouts,
	}
}

// stagingDir is where a host's rendered scripts are staged locally before
// transfer.
func stagingDir(cfg *config.Config, hostName string) string {
	return filepath.Join(config.ExpandPath(cfg.State.Dir), "scripts", hostName)
}

// kubeconfigPath is the local destination for the downloaded admin
// kubeconfig.
func kubeconfigPath(cfg *config.Config) string {
	return filepath.Join(config.ExpandPath(cfg.State.Dir), naming.Kubeconfig(cfg.ClusterName))
}
