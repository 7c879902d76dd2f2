package extension

import (
	"github.com/xraph/mockprep"
	"github.com/xraph/mockprep/api"
	"github.com/xraph/mockprep/plugin"
	"github.com/xraph/mockprep/provider"
	"github.com/xraph/mockprep/store"
)

// Option configures the mockprep Forge extension.
type Option func(*Extension)

// WithStore sets the store for the mockprep engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a mockprep.Option through to the underlying engine.
func WithEngineOption(opt mockprep.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a mockprep plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, mockprep.WithPlugin(p))
	}
}

// WithProvider sets the payment provider.
func WithProvider(p provider.Provider) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, mockprep.WithProvider(p))
	}
}

// WithAPIOption passes an api.Option through to the HTTP server.
func WithAPIOption(opt api.Option) Option {
	return func(e *Extension) {
		e.apiOpts = append(e.apiOpts, opt)
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP route registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for mockprep routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithJWTSecret sets the bearer token signing secret.
func WithJWTSecret(secret string) Option {
	return func(e *Extension) { e.config.JWTSecret = secret }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithGroveDatabase sets the name of the grove.DB to resolve from the DI container.
// The extension constructs the matching store backend (postgres or mongo)
// from the grove driver. Pass an empty string to use the default (unnamed) grove.DB.
func WithGroveDatabase(name string) Option {
	return func(e *Extension) {
		e.config.GroveDatabase = name
		e.useGrove = true
	}
}
