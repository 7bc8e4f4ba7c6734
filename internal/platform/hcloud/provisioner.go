package hcloud

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
	"github.com/kubeboot/kubeboot/internal/config"
	"github.com/kubeboot/kubeboot/internal/util/naming"
	"github.com/kubeboot/kubeboot/internal/util/retry"
)

const defaultImage = "debian-12"

// Labels attached to every resource so a cluster can be identified and
// cleaned up by label alone, even when run state was lost.
const (
	labelCluster = "kubeboot-cluster"
	labelRole    = "kubeboot-role"
)

// Provisioner realizes and destroys cluster topologies on Hetzner Cloud.
// Provision adopts resources left behind by earlier attempts instead of
// failing on name collisions, which keeps re-invocation idempotent.
type Provisioner struct {
	api      API
	timeouts *config.Timeouts
}

// NewProvisioner creates a Provisioner on top of the given API client.
func NewProvisioner(api API, timeouts *config.Timeouts) *Provisioner {
	return &Provisioner{api: api, timeouts: timeouts}
}

var _ bootstrap.Provisioner = (*Provisioner)(nil)

// Provision realizes the declared topology: one SSH key plus one server per
// topology entry. Existing resources with matching names are adopted.
func (p *Provisioner) Provision(ctx context.Context, cfg *config.Config) ([]bootstrap.Host, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Provision)
	defer cancel()

	sshKey, err := p.ensureSSHKey(ctx, cfg)
	if err != nil {
		return nil, &bootstrap.ProvisionError{Action: "provision", Err: err}
	}

	hosts := make([]bootstrap.Host, 0, cfg.ControlPlane.Count+cfg.Workers.Count)
	for i := 0; i < cfg.ControlPlane.Count; i++ {
		host, err := p.ensureServer(ctx, cfg, naming.ControlPlane(cfg.ClusterName, i),
			bootstrap.RoleControlPlane, cfg.ControlPlane.ServerType, sshKey)
		if err != nil {
			return nil, &bootstrap.ProvisionError{Action: "provision", Err: err}
		}
		hosts = append(hosts, host)
	}
	for i := 0; i < cfg.Workers.Count; i++ {
		host, err := p.ensureServer(ctx, cfg, naming.Worker(cfg.ClusterName, i),
			bootstrap.RoleWorker, cfg.Workers.ServerType, sshKey)
		if err != nil {
			return nil, &bootstrap.ProvisionError{Action: "provision", Err: err}
		}
		hosts = append(hosts, host)
	}
	return hosts, nil
}

// Destroy removes the recorded hosts, any stray servers carrying the cluster
// label, and the cluster SSH key. Failures are collected so one stuck server
// does not leave the rest behind; re-invoking Destroy retries the remainder.
func (p *Provisioner) Destroy(ctx context.Context, cfg *config.Config, hosts []bootstrap.Host) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Destroy)
	defer cancel()

	var errs []error
	seen := make(map[string]bool)

	for _, host := range hosts {
		seen[host.Name] = true
		server, err := p.api.GetServer(ctx, host.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if server == nil {
			continue // already gone
		}
		if err := p.deleteServer(ctx, server); err != nil {
			errs = append(errs, err)
		}
	}

	// servers from earlier attempts the run state never recorded
	strays, err := p.api.ListServers(ctx, fmt.Sprintf("%s=%s", labelCluster, cfg.ClusterName))
	if err != nil {
		errs = append(errs, err)
	}
	for _, server := range strays {
		if seen[server.Name] {
			continue
		}
		if err := p.deleteServer(ctx, server); err != nil {
			errs = append(errs, err)
		}
	}

	if err := p.api.DeleteSSHKey(ctx, naming.SSHKey(cfg.ClusterName)); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return &bootstrap.ProvisionError{Action: "destroy", Err: errors.Join(errs...)}
	}
	return nil
}

func (p *Provisioner) ensureSSHKey(ctx context.Context, cfg *config.Config) (*hcloud.SSHKey, error) {
	name := naming.SSHKey(cfg.ClusterName)
	key, err := p.api.GetSSHKey(ctx, name)
	if err != nil {
		return nil, err
	}
	if key != nil {
		return key, nil
	}

	publicKey, err := os.ReadFile(config.ExpandPath(cfg.SSH.PublicKeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}

	return p.api.CreateSSHKey(ctx, name, strings.TrimSpace(string(publicKey)), map[string]string{
		labelCluster: cfg.ClusterName,
	})
}

func (p *Provisioner) ensureServer(
	ctx context.Context,
	cfg *config.Config,
	name string,
	role bootstrap.Role,
	serverType string,
	sshKey *hcloud.SSHKey,
) (bootstrap.Host, error) {
	server, err := p.api.GetServer(ctx, name)
	if err != nil {
		return bootstrap.Host{}, err
	}

	if server == nil {
		opts := hcloud.ServerCreateOpts{
			Name:       name,
			ServerType: &hcloud.ServerType{Name: serverType},
			Image:      &hcloud.Image{Name: defaultImage},
			Location:   &hcloud.Location{Name: cfg.Location},
			SSHKeys:    []*hcloud.SSHKey{sshKey},
			Labels: map[string]string{
				labelCluster: cfg.ClusterName,
				labelRole:    string(role),
			},
		}

		err = retry.WithExponentialBackoff(ctx, func() error {
			created, err := p.api.CreateServer(ctx, opts)
			if err != nil {
				if isInvalidParameter(err) {
					return retry.Fatal(err)
				}
				return err
			}
			server = created
			return nil
		},
			retry.WithMaxRetries(p.timeouts.RetryMaxAttempts),
			retry.WithInitialDelay(p.timeouts.RetryInitialDelay),
		)
		if err != nil {
			return bootstrap.Host{}, fmt.Errorf("failed to create server %s: %w", name, err)
		}
	}

	return hostFromServer(server, role), nil
}

func (p *Provisioner) deleteServer(ctx context.Context, server *hcloud.Server) error {
	return retry.WithExponentialBackoff(ctx, func() error {
		err := p.api.DeleteServer(ctx, server)
		if err != nil && !isResourceLocked(err) {
			return retry.Fatal(err)
		}
		return err
	},
		retry.WithMaxRetries(p.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(p.timeouts.RetryInitialDelay),
	)
}

func hostFromServer(server *hcloud.Server, role bootstrap.Role) bootstrap.Host {
	host := bootstrap.Host{
		ID:    fmt.Sprintf("%d", server.ID),
		Name:  server.Name,
		Role:  role,
		State: bootstrap.StateProvisioned,
	}
	if server.PublicNet.IPv4.IP != nil {
		host.PublicAddress = server.PublicNet.IPv4.IP.String()
	}
	if len(server.PrivateNet) > 0 && server.PrivateNet[0].IP != nil {
		host.PrivateAddress = server.PrivateNet[0].IP.String()
	}
	return host
}
