package hcloud

import (
	"context"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// MockClient is a mock implementation of API.
type MockClient struct {
	GetSSHKeyFunc    func(ctx context.Context, name string) (*hcloud.SSHKey, error)
	CreateSSHKeyFunc func(ctx context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error)
	DeleteSSHKeyFunc func(ctx context.Context, name string) error

	GetServerFunc    func(ctx context.Context, name string) (*hcloud.Server, error)
	CreateServerFunc func(ctx context.Context, opts hcloud.ServerCreateOpts) (*hcloud.Server, error)
	ListServersFunc  func(ctx context.Context, labelSelector string) ([]*hcloud.Server, error)
	DeleteServerFunc func(ctx context.Context, server *hcloud.Server) error
}

// Ensure interface compliance
var _ API = (*MockClient)(nil)

// GetSSHKey mocks SSH key lookup.
func (m *MockClient) GetSSHKey(ctx context.Context, name string) (*hcloud.SSHKey, error) {
	if m.GetSSHKeyFunc != nil {
		return m.GetSSHKeyFunc(ctx, name)
	}
	return nil, nil
}

// CreateSSHKey mocks SSH key creation.
func (m *MockClient) CreateSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error) {
	if m.CreateSSHKeyFunc != nil {
		return m.CreateSSHKeyFunc(ctx, name, publicKey, labels)
	}
	return &hcloud.SSHKey{ID: 1, Name: name}, nil
}

// DeleteSSHKey mocks SSH key deletion.
func (m *MockClient) DeleteSSHKey(ctx context.Context, name string) error {
	if m.DeleteSSHKeyFunc != nil {
		return m.DeleteSSHKeyFunc(ctx, name)
	}
	return nil
}

// GetServer mocks server lookup.
func (m *MockClient) GetServer(ctx context.Context, name string) (*hcloud.Server, error) {
	if m.GetServerFunc != nil {
		return m.GetServerFunc(ctx, name)
	}
	return nil, nil
}

// CreateServer mocks server creation.
func (m *MockClient) CreateServer(ctx context.Context, opts hcloud.ServerCreateOpts) (*hcloud.Server, error) {
	if m.CreateServerFunc != nil {
		return m.CreateServerFunc(ctx, opts)
	}
	return &hcloud.Server{ID: 1, Name: opts.Name}, nil
}

// ListServers mocks server listing.
func (m *MockClient) ListServers(ctx context.Context, labelSelector string) ([]*hcloud.Server, error) {
	if m.ListServersFunc != nil {
		return m.ListServersFunc(ctx, labelSelector)
	}
	return nil, nil
}

// DeleteServer mocks server deletion.
func (m *MockClient) DeleteServer(ctx context.Context, server *hcloud.Server) error {
	if m.DeleteServerFunc != nil {
		return m.DeleteServerFunc(ctx, server)
	}
	return nil
}
