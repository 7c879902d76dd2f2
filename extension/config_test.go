package extension

import (
	"testing"
	"time"
)

func TestMergeWithDefaults(t *testing.T) {
	e := New()
	cfg := e.mergeWithDefaults(Config{SignupBonus: 5})

	if cfg.SignupBonus != 5 {
		t.Errorf("SignupBonus = %d, want 5", cfg.SignupBonus)
	}
	if cfg.BasePath != "/api" {
		t.Errorf("BasePath = %q", cfg.BasePath)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v", cfg.TokenTTL)
	}
	if cfg.ReferralBonus != 10 || cfg.ProviderTimeout != 15*time.Second {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestMergeConfigurations(t *testing.T) {
	e := New()
	yaml := Config{BasePath: "/v1", SignupBonus: 30}
	prog := Config{
		BasePath:       "/ignored",
		JWTSecret:      "programmatic-secret-123",
		DisableMigrate: true,
		GroveDatabase:  "primary",
		TokenTTL:       time.Hour,
		GoogleClientID: "client-123",
	}

	cfg := e.mergeConfigurations(yaml, prog)
	if cfg.GoogleClientID != "client-123" {
		t.Errorf("GoogleClientID = %q", cfg.GoogleClientID)
	}
	if cfg.BasePath != "/v1" {
		t.Errorf("BasePath = %q, want yaml value", cfg.BasePath)
	}
	if cfg.JWTSecret != "programmatic-secret-123" {
		t.Errorf("JWTSecret = %q", cfg.JWTSecret)
	}
	if !cfg.DisableMigrate {
		t.Error("DisableMigrate should carry over")
	}
	if cfg.GroveDatabase != "primary" {
		t.Errorf("GroveDatabase = %q", cfg.GroveDatabase)
	}
	if cfg.SignupBonus != 30 || cfg.TokenTTL != time.Hour {
		t.Errorf("merged = %+v", cfg)
	}
	if cfg.ProviderTimeout != 15*time.Second {
		t.Errorf("ProviderTimeout = %v", cfg.ProviderTimeout)
	}
}

func TestOptionsApply(t *testing.T) {
	e := New(WithBasePath("/x"), WithJWTSecret("s"), WithDisableRoutes(), WithGroveDatabase(""))
	if e.config.BasePath != "/x" || e.config.JWTSecret != "s" || !e.config.DisableRoutes {
		t.Errorf("config = %+v", e.config)
	}
	if !e.useGrove {
		t.Error("WithGroveDatabase should enable grove resolution")
	}
	if e.Engine() != nil || e.Server() != nil {
		t.Error("engine and server are built by Register")
	}
}
