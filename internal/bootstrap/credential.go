package bootstrap

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Credential is the control-plane-issued join token permitting a worker to
// join the cluster. The token is opaque to the orchestrator and lives only
// for the process lifetime; it can be re-derived by querying the control
// plane again if lost.
type Credential struct {
	Token      string
	IssuedAt   time.Time
	IssuerHost string
}

// CredentialStore bridges the control-plane phase to the worker phase.
// A cluster has exactly one control plane identity for its lifetime, so the
// store accepts one credential: setting an equal credential twice is a no-op,
// a differing one is a conflict.
type CredentialStore struct {
	mu    sync.Mutex
	cred  *Credential
	ready chan struct{}
}

// NewCredentialStore creates an empty credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{ready: make(chan struct{})}
}

// Set stores the credential. Idempotent for an equal token; a differing
// token after one is held returns a CredentialConflictError.
func (s *CredentialStore) Set(cred Credential) error {
	if cred.Token == "" {
		return fmt.Errorf("refusing to store empty join credential")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred != nil {
		if s.cred.Token == cred.Token {
			return nil
		}
		return &CredentialConflictError{
			ExistingIssuer: s.cred.IssuerHost,
			OfferedIssuer:  cred.IssuerHost,
		}
	}

	s.cred = &cred
	close(s.ready)
	return nil
}

// Get returns the stored credential, or nil if none has been set.
func (s *CredentialStore) Get() *Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil
	}
	copied := *s.cred
	return &copied
}

// Wait blocks until a credential is available, the timeout elapses, or the
// context is cancelled. This is the worker phase's only coupling to the
// control-plane phase: a blocking read, not a busy poll.
func (s *CredentialStore) Wait(ctx context.Context, timeout time.Duration) (*Credential, error) {
	select {
	case <-s.ready:
		return s.Get(), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("cancelled waiting for join credential: %w", ctx.Err())
	case <-time.After(timeout):
		return nil, fmt.Errorf("no join credential after %v", timeout)
	}
}
