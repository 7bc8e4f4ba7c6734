package state

import (
	"context"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
	"github.com/kubeboot/kubeboot/internal/platform/s3"
	"github.com/kubeboot/kubeboot/internal/util/naming"
)

// S3Store persists runs in an S3-compatible bucket so state survives the
// machine that started the bootstrap.
type S3Store struct {
	client *s3.Client
}

// NewS3Store creates a store on top of an S3 client. The bucket is created
// if missing.
func NewS3Store(ctx context.Context, client *s3.Client) (*S3Store, error) {
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return &S3Store{client: client}, nil
}

var _ bootstrap.StateStore = (*S3Store)(nil)

// Save writes the run as one object; S3 puts are atomic per key.
func (s *S3Store) Save(ctx context.Context, run *bootstrap.Run) error {
	data, err := marshalRun(run)
	if err != nil {
		return err
	}
	return s.client.PutObject(ctx, naming.RunStateObject(run.ClusterName), data)
}

// Load reads the recorded run for the cluster, or ErrNotFound.
func (s *S3Store) Load(ctx context.Context, clusterName string) (*bootstrap.Run, error) {
	data, err := s.client.GetObject(ctx, naming.RunStateObject(clusterName))
	if err != nil {
		if s3.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return unmarshalRun(data)
}

// Delete removes the recorded run.
func (s *S3Store) Delete(ctx context.Context, clusterName string) error {
	return s.client.DeleteObject(ctx, naming.RunStateObject(clusterName))
}
