// Package hcloud realizes cluster topologies on Hetzner Cloud.
package hcloud

import (
	"context"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// API is the subset of the Hetzner Cloud API the provisioner uses.
// It abstracts the underlying cloud provider client for testing.
type API interface {
	// GetSSHKey returns the SSH key with the given name, or nil.
	GetSSHKey(ctx context.Context, name string) (*hcloud.SSHKey, error)

	// CreateSSHKey uploads a public key under the given name.
	CreateSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error)

	// DeleteSSHKey deletes the SSH key with the given name.
	// Deleting a key that does not exist is not an error.
	DeleteSSHKey(ctx context.Context, name string) error

	// GetServer returns the server with the given name, or nil.
	GetServer(ctx context.Context, name string) (*hcloud.Server, error)

	// CreateServer creates a server and waits until the create action
	// has finished.
	CreateServer(ctx context.Context, opts hcloud.ServerCreateOpts) (*hcloud.Server, error)

	// ListServers returns all servers matching the label selector.
	ListServers(ctx context.Context, labelSelector string) ([]*hcloud.Server, error)

	// DeleteServer deletes a server.
	DeleteServer(ctx context.Context, server *hcloud.Server) error
}
