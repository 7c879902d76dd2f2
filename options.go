package mockprep

import (
	"log/slog"
	"strings"
	"time"

	"github.com/xraph/mockprep/plugin"
	"github.com/xraph/mockprep/provider"
)

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithProvider sets the payment provider.
func WithProvider(p provider.Provider) Option {
	return func(e *Engine) {
		e.provider = p
	}
}

// WithSignupBonus sets the credits granted at registration. Zero disables it.
func WithSignupBonus(credits int64) Option {
	return func(e *Engine) {
		if credits >= 0 {
			e.signupBonus = credits
		}
	}
}

// WithReferralBonus sets the credits granted to each side of a referral.
func WithReferralBonus(credits int64) Option {
	return func(e *Engine) {
		if credits >= 0 {
			e.referralBonus = credits
		}
	}
}

// WithMaxGrant caps manual credit grants.
func WithMaxGrant(credits int64) Option {
	return func(e *Engine) {
		if credits > 0 {
			e.maxGrant = credits
		}
	}
}

// WithProviderTimeout bounds every payment provider call.
func WithProviderTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.providerTimeout = d
		}
	}
}

// WithRecoveryLimit sets how many pending payments a recovery sweep checks.
func WithRecoveryLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.recoveryLimit = n
		}
	}
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.plugins.WithTimeout(d)
	}
}

// WithCheckoutURLs sets the fallback origin and the success/cancel paths
// appended to it when building checkout redirect URLs.
func WithCheckoutURLs(origin, successPath, cancelPath string) Option {
	return func(e *Engine) {
		e.defaultOrigin = strings.TrimRight(origin, "/")
		if successPath != "" {
			e.successPath = successPath
		}
		if cancelPath != "" {
			e.cancelPath = cancelPath
		}
	}
}

// WithoutMigrate makes Start skip store migrations. Use it when the schema is
// managed out of band.
func WithoutMigrate() Option {
	return func(e *Engine) { e.skipMigrate = true }
}
