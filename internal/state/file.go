package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
	"github.com/kubeboot/kubeboot/internal/util/naming"
)

// FileStore persists runs as YAML files in a local directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created on
// first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

var _ bootstrap.StateStore = (*FileStore)(nil)

// Save writes the run atomically: a rename over the previous file so a crash
// mid-write never leaves a truncated state file behind.
func (s *FileStore) Save(_ context.Context, run *bootstrap.Run) error {
	data, err := marshalRun(run)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	path := s.path(run.ClusterName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Load reads the recorded run for the cluster, or ErrNotFound.
func (s *FileStore) Load(_ context.Context, clusterName string) (*bootstrap.Run, error) {
	data, err := os.ReadFile(s.path(clusterName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	return unmarshalRun(data)
}

// Delete removes the recorded run. Deleting an absent run is a no-op.
func (s *FileStore) Delete(_ context.Context, clusterName string) error {
	if err := os.Remove(s.path(clusterName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	return nil
}

func (s *FileStore) path(clusterName string) string {
	return filepath.Join(s.dir, naming.RunStateObject(clusterName))
}
