package provisioning

import (
	"context"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/state"
)

// Phase defines one lifecycle step.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the phase.
	Provision(ctx *Context) error
}

// Context wraps all dependencies and state needed for a lifecycle phase.
type Context struct {
	context.Context
	Config   *config.ClusterConfig
	Settings *config.Settings
	Store    *state.Store
	Observer Observer
	Timeouts *config.Timeouts
}

// NewContext creates a lifecycle context around a cluster's state store.
func NewContext(ctx context.Context, cfg *config.ClusterConfig, settings *config.Settings, store *state.Store) *Context {
	return &Context{
		Context:  ctx,
		Config:   cfg,
		Settings: settings,
		Store:    store,
		Observer: NewConsoleObserver(),
		Timeouts: config.LoadTimeouts(),
	}
}
