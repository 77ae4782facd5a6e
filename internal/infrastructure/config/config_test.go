package config_test

import (
	"testing"
	"time"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL == "" {
		t.Fatalf("expected default database URL to be set")
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default HTTP port 8080, got %s", cfg.HTTPPort)
	}

	if cfg.Policy() != domain.CascadeStrict {
		t.Fatalf("expected strict cascade policy by default, got %s", cfg.Policy())
	}

	if cfg.LockTimeout != 5*time.Second || cfg.TransactionTimeout != 10*time.Second {
		t.Fatalf("unexpected ledger timeouts lock=%s tx=%s", cfg.LockTimeout, cfg.TransactionTimeout)
	}

	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("unexpected CORS origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_TIMEOUT", "45s")
	t.Setenv("JWT_SECRET", "top-secret")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("LEDGER_CASCADE_POLICY", "Permissive")
	t.Setenv("LEDGER_LOCK_TIMEOUT", "2s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL != "postgres://example" || cfg.RedisURL != "redis://example" {
		t.Fatalf("expected custom URLs, got %s %s", cfg.DatabaseURL, cfg.RedisURL)
	}

	if cfg.HTTPPort != "9090" || cfg.DatabaseTimeout != 45*time.Second {
		t.Fatalf("expected overrides, got port=%s timeout=%s", cfg.HTTPPort, cfg.DatabaseTimeout)
	}

	if cfg.JWTSecret != "top-secret" || !cfg.AuthEnabled {
		t.Fatalf("expected auth settings to be set, got secret=%s enabled=%v", cfg.JWTSecret, cfg.AuthEnabled)
	}

	if cfg.Policy() != domain.CascadePermissive || cfg.LockTimeout != 2*time.Second {
		t.Fatalf("expected ledger overrides, got policy=%s lock=%s", cfg.Policy(), cfg.LockTimeout)
	}

	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected two CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"invalid duration", map[string]string{"HTTP_READ_TIMEOUT": "not-a-duration"}},
		{"unknown policy", map[string]string{"LEDGER_CASCADE_POLICY": "lenient"}},
		{"auth without secret", map[string]string{"AUTH_ENABLED": "true", "JWT_SECRET": ""}},
		{"lock timeout beyond transaction", map[string]string{"LEDGER_LOCK_TIMEOUT": "20s", "LEDGER_TX_TIMEOUT": "10s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := config.Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
