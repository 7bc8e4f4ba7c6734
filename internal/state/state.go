// Package state persists bootstrap runs so an interrupted invocation can
// resume instead of starting over.
//
// Two backends exist: a local file store, always available, and an
// S3-compatible object store for state shared between operators. Both
// round-trip a run losslessly; the join credential is not part of a run and
// therefore never reaches either backend.
package state

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
)

// ErrNotFound is returned by Load when no run is recorded for the cluster.
var ErrNotFound = errors.New("no recorded run")

func marshalRun(run *bootstrap.Run) ([]byte, error) {
	data, err := yaml.Marshal(run.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run: %w", err)
	}
	return data, nil
}

func unmarshalRun(data []byte) (*bootstrap.Run, error) {
	var run bootstrap.Run
	if err := yaml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	if run.Logs == nil {
		run.Logs = make(map[string][]bootstrap.Record)
	}
	return &run, nil
}
