package mockprep

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/mockprep/plugin"
	"github.com/xraph/mockprep/provider"
	"github.com/xraph/mockprep/store"
)

// Defaults applied by New.
const (
	DefaultSignupBonus        int64 = 20
	DefaultReferralBonus      int64 = 10
	DefaultMaxGrant           int64 = 500
	DefaultProviderTimeout          = 15 * time.Second
	DefaultRecoveryLimit            = 10
	DefaultRecentWindow             = 24 * time.Hour
	DefaultTransactionsLimit        = 50
	DefaultConversationsLimit       = 100
	DefaultSuccessPath              = "/payment/success"
	DefaultCancelPath               = "/pricing"
)

// Engine is the mockprep core: accounts, the credit ledger, conversation
// lifecycle and payment reconciliation on top of one store.
type Engine struct {
	store    store.Store
	plugins  *plugin.Registry
	logger   *slog.Logger
	provider provider.Provider

	signupBonus     int64
	referralBonus   int64
	maxGrant        int64
	providerTimeout time.Duration
	recoveryLimit   int
	recentWindow    time.Duration
	defaultOrigin   string
	successPath     string
	cancelPath      string
	skipMigrate     bool
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:           s,
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		signupBonus:     DefaultSignupBonus,
		referralBonus:   DefaultReferralBonus,
		maxGrant:        DefaultMaxGrant,
		providerTimeout: DefaultProviderTimeout,
		recoveryLimit:   DefaultRecoveryLimit,
		recentWindow:    DefaultRecentWindow,
		successPath:     DefaultSuccessPath,
		cancelPath:      DefaultCancelPath,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start migrates the store (unless disabled with WithoutMigrate) and
// initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	e.plugins.EmitInit(ctx, e)

	providerName := "none"
	if e.provider != nil {
		providerName = e.provider.Name()
	}
	e.logger.Info("mockprep started",
		"provider", providerName,
		"plugins", e.plugins.Count(),
		"signup_bonus", e.signupBonus,
		"referral_bonus", e.referralBonus,
	)

	return nil
}

// Stop notifies plugins and closes the store.
func (e *Engine) Stop() error {
	e.plugins.EmitShutdown(context.Background())
	return e.store.Close()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Provider returns the configured payment provider, or nil.
func (e *Engine) Provider() provider.Provider { return e.provider }
