// Package config loads the mockprep server configuration from an optional
// YAML file, a .env file and MOCKPREP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, so server.addr
// becomes MOCKPREP_SERVER_ADDR.
const EnvPrefix = "MOCKPREP"

// Supported database drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `json:"server" mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `json:"database" mapstructure:"database" yaml:"database"`
	Auth     AuthConfig     `json:"auth" mapstructure:"auth" yaml:"auth"`
	Stripe   StripeConfig   `json:"stripe" mapstructure:"stripe" yaml:"stripe"`
	Vapi     VapiConfig     `json:"vapi" mapstructure:"vapi" yaml:"vapi"`
	Credits  CreditsConfig  `json:"credits" mapstructure:"credits" yaml:"credits"`
	Timeouts TimeoutsConfig `json:"timeouts" mapstructure:"timeouts" yaml:"timeouts"`
	Mail     MailConfig     `json:"mail" mapstructure:"mail" yaml:"mail"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `json:"addr" mapstructure:"addr" yaml:"addr"`
	BasePath        string        `json:"base_path" mapstructure:"base_path" yaml:"base_path"`
	PublicURL       string        `json:"public_url" mapstructure:"public_url" yaml:"public_url"`
	CORSOrigins     []string      `json:"cors_origins" mapstructure:"cors_origins" yaml:"cors_origins"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`
	DSN    string `json:"dsn" mapstructure:"dsn" yaml:"dsn"`
	// Name is the Mongo database name; ignored by other drivers.
	Name string `json:"name" mapstructure:"name" yaml:"name"`
}

// AuthConfig holds the bearer token settings. Google sign-in is enabled
// when GoogleClientID is set.
type AuthConfig struct {
	JWTSecret      string        `json:"jwt_secret" mapstructure:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL       time.Duration `json:"token_ttl" mapstructure:"token_ttl" yaml:"token_ttl"`
	GoogleClientID string        `json:"google_client_id" mapstructure:"google_client_id" yaml:"google_client_id"`
}

// StripeConfig holds the payment provider credentials.
type StripeConfig struct {
	SecretKey      string `json:"secret_key" mapstructure:"secret_key" yaml:"secret_key"`
	PublishableKey string `json:"publishable_key" mapstructure:"publishable_key" yaml:"publishable_key"`
	WebhookSecret  string `json:"webhook_secret" mapstructure:"webhook_secret" yaml:"webhook_secret"`
	SuccessPath    string `json:"success_path" mapstructure:"success_path" yaml:"success_path"`
	CancelPath     string `json:"cancel_path" mapstructure:"cancel_path" yaml:"cancel_path"`
	APIURL         string `json:"api_url" mapstructure:"api_url" yaml:"api_url"`
}

// VapiConfig is handed to the browser client.
type VapiConfig struct {
	PublicKey string `json:"public_key" mapstructure:"public_key" yaml:"public_key"`
}

// CreditsConfig sets the bonus amounts.
type CreditsConfig struct {
	SignupBonus   int64 `json:"signup_bonus" mapstructure:"signup_bonus" yaml:"signup_bonus"`
	ReferralBonus int64 `json:"referral_bonus" mapstructure:"referral_bonus" yaml:"referral_bonus"`
	MaxGrant      int64 `json:"max_grant" mapstructure:"max_grant" yaml:"max_grant"`
}

// TimeoutsConfig bounds outbound calls.
type TimeoutsConfig struct {
	Provider time.Duration `json:"provider" mapstructure:"provider" yaml:"provider"`
	Fetcher  time.Duration `json:"fetcher" mapstructure:"fetcher" yaml:"fetcher"`
}

// MailConfig enables purchase receipts when SendgridKey is set.
type MailConfig struct {
	SendgridKey string `json:"sendgrid_key" mapstructure:"sendgrid_key" yaml:"sendgrid_key"`
	FromAddress string `json:"from_address" mapstructure:"from_address" yaml:"from_address"`
	FromName    string `json:"from_name" mapstructure:"from_name" yaml:"from_name"`
}

var defaults = map[string]any{
	"server.addr":             ":8001",
	"server.base_path":        "/api",
	"server.public_url":       "http://localhost:3000",
	"server.cors_origins":     []string{"*"},
	"server.shutdown_timeout": 10 * time.Second,
	"database.driver":         DriverMemory,
	"database.dsn":            "",
	"database.name":           "mockprep",
	"auth.jwt_secret":         "",
	"auth.token_ttl":          24 * time.Hour,
	"auth.google_client_id":   "",
	"stripe.secret_key":       "",
	"stripe.publishable_key":  "",
	"stripe.webhook_secret":   "",
	"stripe.success_path":     "/payment/success",
	"stripe.cancel_path":      "/pricing",
	"stripe.api_url":          "",
	"vapi.public_key":         "",
	"credits.signup_bonus":    20,
	"credits.referral_bonus":  10,
	"credits.max_grant":       500,
	"timeouts.provider":       15 * time.Second,
	"timeouts.fetcher":        15 * time.Second,
	"mail.sendgrid_key":       "",
	"mail.from_address":       "",
	"mail.from_name":          "Mockprep",
}

// Load reads configuration. path names an optional YAML file; when empty,
// config.yaml in the working directory is tried. Environment variables
// (including those loaded from .env) override file values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres, DriverMongo:
		if c.Database.DSN == "" {
			return fmt.Errorf("config: database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("config: auth.jwt_secret must be at least 16 bytes")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: auth.token_ttl must be positive")
	}
	if c.Credits.SignupBonus < 0 || c.Credits.ReferralBonus < 0 || c.Credits.MaxGrant < 1 {
		return errors.New("config: credit amounts must be non-negative and max_grant positive")
	}
	if c.Mail.SendgridKey != "" && c.Mail.FromAddress == "" {
		return errors.New("config: mail.from_address is required when sendgrid_key is set")
	}
	return nil
}

// PaymentsEnabled reports whether a Stripe key is configured.
func (c *Config) PaymentsEnabled() bool { return c.Stripe.SecretKey != "" }

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool { return c.Auth.GoogleClientID != "" }

// ReceiptsEnabled reports whether purchase receipts should be mailed.
func (c *Config) ReceiptsEnabled() bool { return c.Mail.SendgridKey != "" }

// splitList accepts both YAML lists and a comma separated env value.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
