package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LISTEN_ADDR", "DB_CONN_STRING", "AMQP_URL", "JWT_SECRET",
		"MAX_PHASE_PRODUCT_COUNT", "OUTBOX_POLL_INTERVAL", "OUTBOX_LEASE_TTL",
		"OUTBOX_MAX_ATTEMPTS", "OUTBOX_BATCH_SIZE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("Expected default listen addr :8080, got %q", cfg.ListenAddr)
	}
	if cfg.MaxPhaseProductCount != 1 {
		t.Errorf("Expected default max count 1, got %d", cfg.MaxPhaseProductCount)
	}
	if cfg.OutboxPollInterval != 5*time.Second {
		t.Errorf("Expected default poll interval 5s, got %s", cfg.OutboxPollInterval)
	}
	if cfg.JWTSecret != "" {
		t.Errorf("Expected empty JWT secret by default, got %q", cfg.JWTSecret)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_PHASE_PRODUCT_COUNT", "5")
	t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("JWT_SECRET", "sekrit")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.MaxPhaseProductCount != 5 {
		t.Errorf("Expected max count 5, got %d", cfg.MaxPhaseProductCount)
	}
	if cfg.OutboxPollInterval != 250*time.Millisecond {
		t.Errorf("Expected poll interval 250ms, got %s", cfg.OutboxPollInterval)
	}
	if cfg.JWTSecret != "sekrit" {
		t.Errorf("Expected JWT secret to be read, got %q", cfg.JWTSecret)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)

	t.Setenv("MAX_PHASE_PRODUCT_COUNT", "zero")
	if _, err := Load(); err == nil {
		t.Errorf("Expected error for non-numeric max count")
	}

	t.Setenv("MAX_PHASE_PRODUCT_COUNT", "-1")
	if _, err := Load(); err == nil {
		t.Errorf("Expected error for negative max count")
	}

	t.Setenv("MAX_PHASE_PRODUCT_COUNT", "")
	t.Setenv("OUTBOX_POLL_INTERVAL", "soon")
	if _, err := Load(); err == nil {
		t.Errorf("Expected error for unparseable poll interval")
	}
}
