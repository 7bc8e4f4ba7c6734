package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeboot/kubeboot/internal/bootstrap"
)

func sampleRun(t *testing.T) *bootstrap.Run {
	t.Helper()

	run := bootstrap.NewRun("demo", bootstrap.Topology{ControlPlanes: 1, Workers: 2})
	run.AddHost(&bootstrap.Host{
		ID:            "1",
		Name:          "demo-control-plane-1",
		Role:          bootstrap.RoleControlPlane,
		PublicAddress: "203.0.113.1",
		State:         bootstrap.StateConfigured,
	})
	run.AddHost(&bootstrap.Host{
		ID:            "2",
		Name:          "demo-worker-1",
		Role:          bootstrap.RoleWorker,
		PublicAddress: "203.0.113.2",
		State:         bootstrap.StateFailed,
		LastError:     "transport failure",
	})
	run.Append("demo-worker-1", bootstrap.Record{
		Index:      0,
		Operation:  "generate node prep script",
		Kind:       bootstrap.OpScriptGenerate,
		Outcome:    bootstrap.OutcomeSucceeded,
		Attempts:   1,
		StartedAt:  time.Now().UTC().Truncate(time.Second),
		FinishedAt: time.Now().UTC().Truncate(time.Second),
	})
	run.Append("demo-worker-1", bootstrap.Record{
		Index:    1,
		Outcome:  bootstrap.OutcomeFailed,
		Attempts: 3,
		Error:    "connection reset",
	})
	run.SetCredentialIssued()
	return run
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir())
	run := sampleRun(t)

	require.NoError(t, store.Save(context.Background(), run))

	loaded, err := store.Load(context.Background(), "demo")
	require.NoError(t, err)

	assert.Equal(t, "demo", loaded.ClusterName)
	assert.Equal(t, run.Topology, loaded.Topology)
	assert.True(t, loaded.CredentialIssued)

	host := loaded.HostByName("demo-worker-1")
	require.NotNil(t, host)
	assert.Equal(t, bootstrap.StateFailed, host.State)
	assert.Equal(t, "transport failure", host.LastError)

	// resume position survives the round trip
	assert.Equal(t, 1, loaded.ResumeIndex("demo-worker-1"))

	records := loaded.Log("demo-worker-1")
	require.Len(t, records, 2)
	assert.Equal(t, 3, records[1].Attempts)
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore(t.TempDir())

	_, err := store.Load(context.Background(), "demo")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFileStoreDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	run := sampleRun(t)

	require.NoError(t, store.Save(context.Background(), run))
	require.NoError(t, store.Delete(context.Background(), "demo"))

	_, err := store.Load(context.Background(), "demo")
	assert.True(t, errors.Is(err, ErrNotFound))

	// deleting again is fine
	assert.NoError(t, store.Delete(context.Background(), "demo"))
}

func TestFileStoreSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)

	require.NoError(t, store.Save(context.Background(), sampleRun(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp file left behind")
	assert.Equal(t, "demo-run.yaml", entries[0].Name())

	data, err := os.ReadFile(filepath.Join(dir, "demo-run.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "credential_issued: true")
}
