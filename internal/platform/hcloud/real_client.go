package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// RealClient implements API using the Hetzner Cloud API.
type RealClient struct {
	client *hcloud.Client
}

// NewRealClient creates a new RealClient.
func NewRealClient(token string) *RealClient {
	return &RealClient{
		client: hcloud.NewClient(hcloud.WithToken(token)),
	}
}

// GetSSHKey returns the SSH key with the given name, or nil.
func (c *RealClient) GetSSHKey(ctx context.Context, name string) (*hcloud.SSHKey, error) {
	key, _, err := c.client.SSHKey.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get ssh key: %w", err)
	}
	return key, nil
}

// CreateSSHKey uploads a public key under the given name.
func (c *RealClient) CreateSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error) {
	key, _, err := c.client.SSHKey.Create(ctx, hcloud.SSHKeyCreateOpts{
		Name:      name,
		PublicKey: publicKey,
		Labels:    labels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ssh key: %w", err)
	}
	return key, nil
}

// DeleteSSHKey deletes the SSH key with the given name.
func (c *RealClient) DeleteSSHKey(ctx context.Context, name string) error {
	key, _, err := c.client.SSHKey.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get ssh key: %w", err)
	}
	if key == nil {
		return nil // already deleted
	}
	if _, err := c.client.SSHKey.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete ssh key: %w", err)
	}
	return nil
}

// GetServer returns the server with the given name, or nil.
func (c *RealClient) GetServer(ctx context.Context, name string) (*hcloud.Server, error) {
	server, _, err := c.client.Server.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	return server, nil
}

// CreateServer creates a server and waits for the create action to finish.
func (c *RealClient) CreateServer(ctx context.Context, opts hcloud.ServerCreateOpts) (*hcloud.Server, error) {
	result, _, err := c.client.Server.Create(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	if err := c.client.Action.WaitFor(ctx, result.Action); err != nil {
		return nil, fmt.Errorf("failed to wait for server creation: %w", err)
	}
	server, _, err := c.client.Server.GetByID(ctx, result.Server.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get created server: %w", err)
	}
	if server == nil {
		return nil, fmt.Errorf("created server %d disappeared", result.Server.ID)
	}
	return server, nil
}

// ListServers returns all servers matching the label selector.
func (c *RealClient) ListServers(ctx context.Context, labelSelector string) ([]*hcloud.Server, error) {
	servers, err := c.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: labelSelector},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	return servers, nil
}

// DeleteServer deletes a server.
func (c *RealClient) DeleteServer(ctx context.Context, server *hcloud.Server) error {
	if _, _, err := c.client.Server.DeleteWithResult(ctx, server); err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	return nil
}
