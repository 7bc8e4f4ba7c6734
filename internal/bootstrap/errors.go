package bootstrap

import (
	"errors"
	"fmt"
)

// ProvisionError indicates infrastructure could not be created or destroyed.
// Fatal to the current phase: a failed create halts the run, a failed destroy
// is reported and retriable by re-invoking teardown.
type ProvisionError struct {
	Action string // "provision" or "destroy"
	Err    error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("infrastructure %s failed: %v", e.Action, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// TransportError indicates a transient connectivity failure on the remote
// execution channel. Retried with bounded backoff; surfaced as a host failure
// only after retries are exhausted.
type TransportError struct {
	Host string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure on %s: %v", e.Host, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// RemoteCommandError indicates a generated script exited nonzero on a host.
// Not retried: a nonzero exit is a logic error in the script, not transient.
type RemoteCommandError struct {
	Host       string
	Operation  string
	ExitStatus int
	Stderr     string
}

func (e *RemoteCommandError) Error() string {
	return fmt.Sprintf("command %q on %s exited with status %d: %s",
		e.Operation, e.Host, e.ExitStatus, e.Stderr)
}

// IsRemoteCommand reports whether err is (or wraps) a RemoteCommandError.
func IsRemoteCommand(err error) bool {
	var rce *RemoteCommandError
	return errors.As(err, &rce)
}

// ErrOrderingViolation is an internal invariant failure, e.g. the worker
// phase running with no credential present. Never expected in correct
// operation; aborts the run loudly rather than silently skipping.
var ErrOrderingViolation = errors.New("ordering invariant violated")

// OrderingViolation wraps ErrOrderingViolation with detail.
func OrderingViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrOrderingViolation, fmt.Sprintf(format, args...))
}

// CredentialConflictError indicates a second, differing join credential was
// reported. Fatal: it means the control plane was unexpectedly re-initialized.
type CredentialConflictError struct {
	ExistingIssuer string
	OfferedIssuer  string
}

func (e *CredentialConflictError) Error() string {
	return fmt.Sprintf("conflicting join credential: already hold one issued by %s, got a different one from %s",
		e.ExistingIssuer, e.OfferedIssuer)
}

// IsCredentialConflict reports whether err is (or wraps) a CredentialConflictError.
func IsCredentialConflict(err error) bool {
	var cce *CredentialConflictError
	return errors.As(err, &cce)
}
