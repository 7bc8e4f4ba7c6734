package bootstrap

import (
	"fmt"
	"sync"
	"time"
)

// Role identifies a host's function within the cluster.
type Role string

const (
	RoleControlPlane Role = "control-plane"
	RoleWorker       Role = "worker"
)

// HostState tracks a host through the bootstrap lifecycle.
type HostState string

const (
	StateProvisioned HostState = "provisioned"
	StateConfiguring HostState = "configuring"
	StateConfigured  HostState = "configured"
	StateJoinPending HostState = "join-pending"
	StateJoined      HostState = "joined"
	StateVerified    HostState = "verified"
	StateFailed      HostState = "failed"
)

// TerminalSuccess reports whether the state is a terminal success state.
// Hosts in a terminal success state are skipped on re-invocation.
func (s HostState) TerminalSuccess() bool {
	return s == StateVerified
}

// Host is one realized machine matching a topology entry.
// Created when the provisioner reports it; mutated only through Run methods
// as phases complete.
type Host struct {
	ID             string    `yaml:"id"`
	Name           string    `yaml:"name"`
	Role           Role      `yaml:"role"`
	PublicAddress  string    `yaml:"public_address"`
	PrivateAddress string    `yaml:"private_address"`
	State          HostState `yaml:"state"`
	LastError      string    `yaml:"last_error,omitempty"`
}

// OperationKind classifies one unit of remote work.
type OperationKind string

const (
	OpScriptGenerate OperationKind = "script-generate"
	OpFileTransfer   OperationKind = "file-transfer"
	OpRemoteCommand  OperationKind = "remote-command"
)

// OutcomeStatus is the result of one operation attempt.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Record is one entry in a host's append-only operation log.
type Record struct {
	Index      int           `yaml:"index"`
	Operation  string        `yaml:"operation"`
	Kind       OperationKind `yaml:"kind"`
	Outcome    OutcomeStatus `yaml:"outcome"`
	Attempts   int           `yaml:"attempts"`
	Error      string        `yaml:"error,omitempty"`
	StartedAt  time.Time     `yaml:"started_at"`
	FinishedAt time.Time     `yaml:"finished_at"`
}

// Topology is an immutable snapshot of the requested cluster shape.
type Topology struct {
	ControlPlanes int `yaml:"control_planes"`
	Workers       int `yaml:"workers"`
}

// Run aggregates one topology request, the realized hosts, and the per-host
// operation logs. It is the unit of persistence for idempotent resume.
//
// The credential value itself is never part of the run: only its presence is
// recorded, so a live bearer token never reaches durable storage.
type Run struct {
	ClusterName      string              `yaml:"cluster_name"`
	Topology         Topology            `yaml:"topology"`
	Hosts            []*Host             `yaml:"hosts"`
	Logs             map[string][]Record `yaml:"logs"`
	CredentialIssued bool                `yaml:"credential_issued"`
	CreatedAt        time.Time           `yaml:"created_at"`
	UpdatedAt        time.Time           `yaml:"updated_at"`

	mu sync.RWMutex
}

// NewRun creates an empty run for the given cluster and topology.
func NewRun(clusterName string, topology Topology) *Run {
	now := time.Now().UTC()
	return &Run{
		ClusterName: clusterName,
		Topology:    topology,
		Logs:        make(map[string][]Record),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AddHost registers a newly realized host. Adding a host that is already
// recorded (by name) is a no-op returning the existing entry, so provisioning
// adoption stays idempotent.
func (r *Run) AddHost(host *Host) *Host {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Hosts {
		if existing.Name == host.Name {
			return existing
		}
	}
	r.Hosts = append(r.Hosts, host)
	r.touch()
	return host
}

// HostByName returns the recorded host with the given name, or nil.
func (r *Run) HostByName(name string) *Host {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, host := range r.Hosts {
		if host.Name == name {
			return host
		}
	}
	return nil
}

// HostsByRole returns all recorded hosts with the given role.
func (r *Run) HostsByRole(role Role) []*Host {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var hosts []*Host
	for _, host := range r.Hosts {
		if host.Role == role {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// SetHostState transitions a host to the given state.
func (r *Run) SetHostState(name string, state HostState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, host := range r.Hosts {
		if host.Name == name {
			host.State = state
			if state != StateFailed {
				host.LastError = ""
			}
			r.touch()
			return nil
		}
	}
	return fmt.Errorf("unknown host %q", name)
}

// MarkHostFailed transitions a host to failed and records its first error.
func (r *Run) MarkHostFailed(name string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, host := range r.Hosts {
		if host.Name == name {
			host.State = StateFailed
			if host.LastError == "" && cause != nil {
				host.LastError = cause.Error()
			}
			r.touch()
			return
		}
	}
}

// Append adds a record to a host's operation log. Fan-out tasks append
// concurrently to distinct host sub-logs; the run mutex keeps the map safe.
func (r *Run) Append(hostName string, rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Logs == nil {
		r.Logs = make(map[string][]Record)
	}
	r.Logs[hostName] = append(r.Logs[hostName], rec)
	r.touch()
}

// Log returns a copy of a host's operation log.
func (r *Run) Log(hostName string) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := r.Logs[hostName]
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// OperationCount returns the total number of log records across all hosts.
func (r *Run) OperationCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, records := range r.Logs {
		total += len(records)
	}
	return total
}

// ResumeIndex returns the plan index at which a host's configuration should
// resume: the length of the contiguous prefix of successfully completed
// operations. A host that failed at index 2 of 5 resumes at 2, not 0.
func (r *Run) ResumeIndex(hostName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lastOutcome := make(map[int]OutcomeStatus)
	maxIndex := -1
	for _, rec := range r.Logs[hostName] {
		lastOutcome[rec.Index] = rec.Outcome
		if rec.Index > maxIndex {
			maxIndex = rec.Index
		}
	}

	index := 0
	for index <= maxIndex && lastOutcome[index] == OutcomeSucceeded {
		index++
	}
	return index
}

// SetCredentialIssued records that the join credential has been captured.
// Only the presence flag persists, never the token.
func (r *Run) SetCredentialIssued() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CredentialIssued = true
	r.touch()
}

// AllTerminalSuccess reports whether every recorded host has reached a
// terminal success state. True means a re-invocation has nothing to do.
func (r *Run) AllTerminalSuccess() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.Hosts) == 0 {
		return false
	}
	for _, host := range r.Hosts {
		if !host.State.TerminalSuccess() {
			return false
		}
	}
	return true
}

// Snapshot returns a deep copy safe for serialization and reporting.
func (r *Run) Snapshot() *Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := &Run{
		ClusterName:      r.ClusterName,
		Topology:         r.Topology,
		CredentialIssued: r.CredentialIssued,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		Logs:             make(map[string][]Record, len(r.Logs)),
	}
	for _, host := range r.Hosts {
		copied := *host
		out.Hosts = append(out.Hosts, &copied)
	}
	for name, records := range r.Logs {
		copied := make([]Record, len(records))
		copy(copied, records)
		out.Logs[name] = copied
	}
	return out
}

func (r *Run) touch() {
	r.UpdatedAt = time.Now().UTC()
}
