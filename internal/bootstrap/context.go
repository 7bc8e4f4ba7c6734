package bootstrap

import (
	"context"

	"github.com/kubeboot/kubeboot/internal/config"
)

// Context wraps all dependencies and state needed by a bootstrap phase.
// It is constructed once per run and passed by reference; there are no
// ambient globals.
type Context struct {
	context.Context
	Config      *config.Config
	Run         *Run
	Infra       Provisioner
	Channels    ChannelFactory
	Scripts     ScriptGenerator
	Credentials *CredentialStore
	States      StateStore
	Observer    Observer
	Timeouts    *config.Timeouts
}

// NewContext creates a new bootstrap context.
func NewContext(
	ctx context.Context,
	cfg *config.Config,
	infra Provisioner,
	channels ChannelFactory,
	scripts ScriptGenerator,
	states StateStore,
) *Context {
	return &Context{
		Context:     ctx,
		Config:      cfg,
		Infra:       infra,
		Channels:    channels,
		Scripts:     scripts,
		Credentials: NewCredentialStore(),
		States:      states,
		Observer:    NewConsoleObserver(),
		Timeouts:    config.LoadTimeouts(),
	}
}

// Persist saves the current run state if a state store is configured.
// Persistence failures are reported to the observer but never fail a phase:
// losing resumability is preferable to aborting a healthy run.
func (c *Context) Persist() {
	if c.States == nil || c.Run == nil {
		return
	}
	if err := c.States.Save(c.Context, c.Run); err != nil {
		c.Observer.Printf("warning: failed to persist run state: %v", err)
	}
}
