package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected shutdown timeout %s", cfg.ShutdownTimeout)
	}
	if cfg.Currency != "SAR" {
		t.Fatalf("unexpected currency %q", cfg.Currency)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MAKTABA_HTTP_ADDR", ":9090")
	t.Setenv("MAKTABA_LOCAL_CART_TTL_SECONDS", "60")
	t.Setenv("MAKTABA_CURRENCY", "usd")
	t.Setenv("MAKTABA_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := FromEnv()
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("expected override, got %q", cfg.HTTPAddr)
	}
	if cfg.LocalCartTTL != time.Minute {
		t.Fatalf("expected 60s ttl, got %s", cfg.LocalCartTTL)
	}
	if cfg.Currency != "USD" {
		t.Fatalf("expected upper-cased currency, got %q", cfg.Currency)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
}
