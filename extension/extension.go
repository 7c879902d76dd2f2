// Package extension provides the Forge extension adapter for mockprep.
//
// It implements the forge.Extension interface to integrate the mockprep
// engine and its HTTP API into a Forge application with DI registration,
// grove-backed storage and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.mockprep" or "mockprep" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/mockprep"
	"github.com/xraph/mockprep/api"
	"github.com/xraph/mockprep/identity/google"
	"github.com/xraph/mockprep/observability"
	"github.com/xraph/mockprep/store"
	"github.com/xraph/mockprep/store/memory"
	"github.com/xraph/mockprep/store/mongo"
	"github.com/xraph/mockprep/store/postgres"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "mockprep"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Mock interview credits, conversations and payments"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts mockprep as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *mockprep.Engine
	server     *api.Server
	store      store.Store
	useGrove   bool
	engineOpts []mockprep.Option
	apiOpts    []api.Option
}

// New creates a new mockprep Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine. It is nil until Register is called.
func (e *Extension) Engine() *mockprep.Engine { return e.engine }

// Server returns the HTTP server, or nil when routes are disabled.
func (e *Extension) Server() *api.Server { return e.server }

// Register implements [forge.Extension]. It loads configuration, resolves
// the store, builds the engine and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil && e.useGrove {
		s, err := e.resolveGroveStore(fapp)
		if err != nil {
			return err
		}
		e.store = s
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	eng := mockprep.New(e.store, e.buildEngineOpts(fapp)...)
	e.engine = eng

	if err := vessel.Provide(fapp.Container(), func() (*mockprep.Engine, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}

	if e.config.DisableRoutes {
		return nil
	}
	return e.registerRoutes(fapp)
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("mockprep: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("mockprep: store not initialized")
	}
	return e.store.Ping(ctx)
}

// StoreFor builds the store matching db's driver.
func StoreFor(db *grove.DB) (store.Store, error) {
	switch name := db.Driver().Name(); name {
	case "pg":
		return postgres.New(db), nil
	case "mongo":
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("mockprep: unsupported grove driver %q", name)
	}
}

func (e *Extension) resolveGroveStore(fapp forge.App) (store.Store, error) {
	var (
		db  *grove.DB
		err error
	)
	if e.config.GroveDatabase != "" {
		db, err = forge.InjectNamed[*grove.DB](fapp.Container(), e.config.GroveDatabase)
	} else {
		db, err = forge.Inject[*grove.DB](fapp.Container())
	}
	if err != nil {
		return nil, fmt.Errorf("mockprep: resolve grove database %q: %w", e.config.GroveDatabase, err)
	}

	s, err := StoreFor(db)
	if err != nil {
		return nil, err
	}
	e.Logger().Debug("mockprep: using grove store",
		forge.F("driver", db.Driver().Name()),
		forge.F("database", e.config.GroveDatabase),
	)
	return s, nil
}

// buildEngineOpts constructs mockprep.Option values from the resolved config.
func (e *Extension) buildEngineOpts(fapp forge.App) []mockprep.Option {
	opts := make([]mockprep.Option, 0, len(e.engineOpts)+5)

	opts = append(opts,
		mockprep.WithSignupBonus(e.config.SignupBonus),
		mockprep.WithReferralBonus(e.config.ReferralBonus),
		mockprep.WithProviderTimeout(e.config.ProviderTimeout),
	)
	if e.config.DisableMigrate {
		opts = append(opts, mockprep.WithoutMigrate())
	}
	if !e.config.DisableMetrics && fapp.Metrics() != nil {
		metrics := observability.NewMetricsExtension(observability.FromGoUtils(fapp.Metrics()))
		opts = append(opts, mockprep.WithPlugin(metrics))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

func (e *Extension) registerRoutes(fapp forge.App) error {
	if len(e.config.JWTSecret) < 16 {
		return errors.New("mockprep: jwt_secret must be at least 16 bytes when routes are enabled")
	}

	apiOpts := e.apiOpts
	if e.config.GoogleClientID != "" {
		apiOpts = append([]api.Option{api.WithGoogle(google.New(e.config.GoogleClientID))}, apiOpts...)
	}
	e.server = api.New(e.engine, api.Config{
		BasePath:             e.config.BasePath,
		CORSOrigins:          e.config.CORSOrigins,
		JWTSecret:            e.config.JWTSecret,
		TokenTTL:             e.config.TokenTTL,
		VapiPublicKey:        e.config.VapiPublicKey,
		StripePublishableKey: e.config.StripePublishableKey,
	}, apiOpts...)

	if err := fapp.Router().Handle(e.config.BasePath, e.server.Handler()); err != nil {
		return fmt.Errorf("mockprep: mount routes: %w", err)
	}
	return nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("mockprep: configuration is required but not found in config files; " +
				"ensure 'extensions.mockprep' or 'mockprep' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	if e.config.GroveDatabase != "" {
		e.useGrove = true
	}

	e.Logger().Debug("mockprep: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("signup_bonus", e.config.SignupBonus),
		forge.F("referral_bonus", e.config.ReferralBonus),
		forge.F("provider_timeout", e.config.ProviderTimeout),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.mockprep", "mockprep"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("mockprep: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("mockprep: loaded config from file",
			forge.F("key", key),
		)
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = defaults.TokenTTL
	}
	if cfg.SignupBonus == 0 {
		cfg.SignupBonus = defaults.SignupBonus
	}
	if cfg.ReferralBonus == 0 {
		cfg.ReferralBonus = defaults.ReferralBonus
	}
	if cfg.ProviderTimeout == 0 {
		cfg.ProviderTimeout = defaults.ProviderTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableMetrics {
		yamlConfig.DisableMetrics = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.JWTSecret == "" {
		yamlConfig.JWTSecret = programmaticConfig.JWTSecret
	}
	if yamlConfig.VapiPublicKey == "" {
		yamlConfig.VapiPublicKey = programmaticConfig.VapiPublicKey
	}
	if yamlConfig.StripePublishableKey == "" {
		yamlConfig.StripePublishableKey = programmaticConfig.StripePublishableKey
	}
	if yamlConfig.GoogleClientID == "" {
		yamlConfig.GoogleClientID = programmaticConfig.GoogleClientID
	}
	if yamlConfig.GroveDatabase == "" {
		yamlConfig.GroveDatabase = programmaticConfig.GroveDatabase
	}
	if len(yamlConfig.CORSOrigins) == 0 {
		yamlConfig.CORSOrigins = programmaticConfig.CORSOrigins
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.TokenTTL == 0 {
		yamlConfig.TokenTTL = programmaticConfig.TokenTTL
	}
	if yamlConfig.SignupBonus == 0 {
		yamlConfig.SignupBonus = programmaticConfig.SignupBonus
	}
	if yamlConfig.ReferralBonus == 0 {
		yamlConfig.ReferralBonus = programmaticConfig.ReferralBonus
	}
	if yamlConfig.ProviderTimeout == 0 {
		yamlConfig.ProviderTimeout = programmaticConfig.ProviderTimeout
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
