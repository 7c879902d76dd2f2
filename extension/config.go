package extension

import "time"

// Config holds the mockprep extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.mockprep" or "mockprep" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// DisableMetrics skips registering the metrics plugin against the
	// app's metrics collector.
	DisableMetrics bool `json:"disable_metrics" mapstructure:"disable_metrics" yaml:"disable_metrics"`

	// BasePath is the URL prefix for mockprep routes (default: "/api").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string `json:"cors_origins" mapstructure:"cors_origins" yaml:"cors_origins"`

	// JWTSecret signs bearer tokens. Required unless routes are disabled.
	JWTSecret string `json:"jwt_secret" mapstructure:"jwt_secret" yaml:"jwt_secret"`

	// TokenTTL is the bearer token lifetime (default: 24h).
	TokenTTL time.Duration `json:"token_ttl" mapstructure:"token_ttl" yaml:"token_ttl"`

	// VapiPublicKey is handed to browsers by GET /vapi/config.
	VapiPublicKey string `json:"vapi_public_key" mapstructure:"vapi_public_key" yaml:"vapi_public_key"`

	// StripePublishableKey is returned with each payment intent.
	StripePublishableKey string `json:"stripe_publishable_key" mapstructure:"stripe_publishable_key" yaml:"stripe_publishable_key"`

	// GoogleClientID enables POST /auth/google for that OAuth client.
	GoogleClientID string `json:"google_client_id" mapstructure:"google_client_id" yaml:"google_client_id"`

	// SignupBonus is granted to every new account (default: 20).
	SignupBonus int64 `json:"signup_bonus" mapstructure:"signup_bonus" yaml:"signup_bonus"`

	// ReferralBonus is granted to a referrer per referred signup (default: 10).
	ReferralBonus int64 `json:"referral_bonus" mapstructure:"referral_bonus" yaml:"referral_bonus"`

	// ProviderTimeout bounds every payment provider call (default: 15s).
	ProviderTimeout time.Duration `json:"provider_timeout" mapstructure:"provider_timeout" yaml:"provider_timeout"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// When set, the extension resolves this named database and constructs
	// the matching store for its driver (pg or mongo).
	// When empty and WithGroveDatabase was called, the default (unnamed) DB is used.
	GroveDatabase string `json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:        "/api",
		TokenTTL:        24 * time.Hour,
		SignupBonus:     20,
		ReferralBonus:   10,
		ProviderTimeout: 15 * time.Second,
	}
}
