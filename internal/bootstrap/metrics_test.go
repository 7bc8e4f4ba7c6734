package bootstrap

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostsGauge(cluster string, role Role, state HostState) float64 {
	return testutil.ToFloat64(hostsByState.WithLabelValues(cluster, string(role), string(state)))
}

func TestRecordHostStatesRefreshesGauges(t *testing.T) {
	run := NewRun("metrics-demo", Topology{ControlPlanes: 1, Workers: 1})
	run.AddHost(&Host{Name: "metrics-demo-control-plane-1", Role: RoleControlPlane, State: StateConfigured})
	run.AddHost(&Host{Name: "metrics-demo-worker-1", Role: RoleWorker, State: StateConfiguring})

	RecordHostStates(run)
	assert.Equal(t, 1.0, hostsGauge("metrics-demo", RoleControlPlane, StateConfigured))
	assert.Equal(t, 1.0, hostsGauge("metrics-demo", RoleWorker, StateConfiguring))
}

func TestRecordHostStatesZeroesEmptiedStates(t *testing.T) {
	run := NewRun("metrics-demo", Topology{ControlPlanes: 0, Workers: 1})
	run.AddHost(&Host{Name: "metrics-demo-worker-1", Role: RoleWorker, State: StateConfiguring})
	RecordHostStates(run)
	require.Equal(t, 1.0, hostsGauge("metrics-demo", RoleWorker, StateConfiguring))

	require.NoError(t, run.SetHostState("metrics-demo-worker-1", StateJoined))
	RecordHostStates(run)

	assert.Equal(t, 0.0, hostsGauge("metrics-demo", RoleWorker, StateConfiguring),
		"a state every host has left must read zero, not its last value")
	assert.Equal(t, 1.0, hostsGauge("metrics-demo", RoleWorker, StateJoined))
}
