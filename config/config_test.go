package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef-test"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MOCKPREP_AUTH_JWT_SECRET", testSecret)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8001" || cfg.Server.BasePath != "/api" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("token ttl = %v", cfg.Auth.TokenTTL)
	}
	if cfg.Credits.SignupBonus != 20 || cfg.Credits.ReferralBonus != 10 || cfg.Credits.MaxGrant != 500 {
		t.Errorf("credits = %+v", cfg.Credits)
	}
	if cfg.PaymentsEnabled() || cfg.ReceiptsEnabled() || cfg.GoogleEnabled() {
		t.Error("optional integrations enabled without keys")
	}
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mockprep.yaml")
	yaml := `
server:
  addr: ":9000"
  cors_origins:
    - https://app.example.com
    - https://admin.example.com
database:
  driver: postgres
  dsn: postgres://localhost/mockprep
auth:
  jwt_secret: ` + testSecret + `
  token_ttl: 1h
  google_client_id: 123.apps.googleusercontent.com
stripe:
  secret_key: sk_test_123
  publishable_key: pk_test_123
credits:
  signup_bonus: 5
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MOCKPREP_CREDITS_SIGNUP_BONUS", "7")
	t.Setenv("MOCKPREP_TIMEOUTS_PROVIDER", "3s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if !reflect.DeepEqual(cfg.Server.CORSOrigins, want) {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Database.Driver != DriverPostgres || cfg.Database.DSN == "" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("token ttl = %v", cfg.Auth.TokenTTL)
	}
	if cfg.Credits.SignupBonus != 7 {
		t.Errorf("signup bonus = %d, want env override 7", cfg.Credits.SignupBonus)
	}
	if cfg.Timeouts.Provider != 3*time.Second {
		t.Errorf("provider timeout = %v", cfg.Timeouts.Provider)
	}
	if !cfg.PaymentsEnabled() {
		t.Error("payments should be enabled")
	}
	if !cfg.GoogleEnabled() || cfg.Stripe.PublishableKey != "pk_test_123" {
		t.Errorf("google client = %q, publishable key = %q", cfg.Auth.GoogleClientID, cfg.Stripe.PublishableKey)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("MOCKPREP_AUTH_JWT_SECRET", testSecret)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Driver: DriverMemory},
			Auth:     AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour},
			Credits:  CreditsConfig{SignupBonus: 20, ReferralBonus: 10, MaxGrant: 500},
		}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }, true},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = DriverPostgres }, true},
		{"mongo with dsn", func(c *Config) { c.Database.Driver = DriverMongo; c.Database.DSN = "mongodb://localhost" }, false},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, true},
		{"zero ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, true},
		{"negative bonus", func(c *Config) { c.Credits.SignupBonus = -1 }, true},
		{"zero max grant", func(c *Config) { c.Credits.MaxGrant = 0 }, true},
		{"sendgrid without sender", func(c *Config) { c.Mail.SendgridKey = "SG.x" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList([]string{"a, b", "", " c "})
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("splitList = %v", got)
	}
}
