package bootstrap

import "github.com/prometheus/client_golang/prometheus"

var (
	phaseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kubeboot",
			Subsystem: "bootstrap",
			Name:      "phase_total",
			Help:      "Total number of executed phases by result",
		},
		[]string{"cluster", "phase", "result"},
	)

	phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kubeboot",
			Subsystem: "bootstrap",
			Name:      "phase_duration_seconds",
			Help:      "Duration of bootstrap phases in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68min
		},
		[]string{"cluster", "phase"},
	)

	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kubeboot",
			Subsystem: "configurator",
			Name:      "operations_total",
			Help:      "Total number of executed plan operations by kind and result",
		},
		[]string{"cluster", "kind", "result"},
	)

	operationRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kubeboot",
			Subsystem: "configurator",
			Name:      "operation_retries_total",
			Help:      "Total number of transport-level operation retries",
		},
		[]string{"cluster"},
	)

	hostsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "kubeboot",
			Subsystem: "cluster",
			Name:      "hosts",
			Help:      "Number of hosts by role and lifecycle state",
		},
		[]string{"cluster", "role", "state"},
	)
)

func init() {
	prometheus.MustRegister(
		phaseTotal,
		phaseDuration,
		operationsTotal,
		operationRetriesTotal,
		hostsByState,
	)
}

// RecordPhase records a phase execution result and duration.
func RecordPhase(cluster, phase, result string, seconds float64) {
	phaseTotal.WithLabelValues(cluster, phase, result).Inc()
	phaseDuration.WithLabelValues(cluster, phase).Observe(seconds)
}

// RecordOperation records one executed plan operation.
func RecordOperation(cluster string, kind OperationKind, outcome OutcomeStatus) {
	operationsTotal.WithLabelValues(cluster, string(kind), string(outcome)).Inc()
}

// RecordRetry records one transport-level retry.
func RecordRetry(cluster string) {
	operationRetriesTotal.WithLabelValues(cluster).Inc()
}

// RecordHostStates refreshes the per-state host gauges from a run snapshot.
func RecordHostStates(run *Run) {
	snapshot := run.Snapshot()
	counts := make(map[[2]string]int)
	for _, host := range snapshot.Hosts {
		counts[[2]string{string(host.Role), string(host.State)}]++
	}
	// drop pairs no host occupies anymore; a stale gauge would keep
	// reporting a state the run already left
	hostsByState.Reset()
	for key, n := range counts {
		hostsByState.WithLabelValues(snapshot.ClusterName, key[0], key[1]).Set(float64(n))
	}
}
