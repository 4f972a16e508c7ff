package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.HTTPAddr)
	}
	if cfg.LedgerEnabled {
		t.Fatal("ledger must be off by default")
	}
	if cfg.OTPExpiry != 10*time.Minute {
		t.Fatalf("expected 10m otp expiry, got %s", cfg.OTPExpiry)
	}
	if cfg.ReleaseAttemptLimit != 0 {
		t.Fatalf("attempt limiting must be off by default, got %d", cfg.ReleaseAttemptLimit)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("LEDGER_ENABLED", "true")
	t.Setenv("LEDGER_TIMEOUT", "250ms")
	t.Setenv("RELEASE_ATTEMPT_LIMIT", "5")

	cfg := Load()
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("override not applied, got %q", cfg.HTTPAddr)
	}
	if !cfg.LedgerEnabled {
		t.Fatal("expected ledger enabled")
	}
	if cfg.LedgerTimeout != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", cfg.LedgerTimeout)
	}
	if cfg.ReleaseAttemptLimit != 5 {
		t.Fatalf("expected limit 5, got %d", cfg.ReleaseAttemptLimit)
	}
}

func TestLoadIgnoresMalformed(t *testing.T) {
	t.Setenv("LEDGER_TIMEOUT", "not-a-duration")
	t.Setenv("RELEASE_ATTEMPT_LIMIT", "many")

	cfg := Load()
	if cfg.LedgerTimeout != 5*time.Second {
		t.Fatalf("expected default timeout on malformed input, got %s", cfg.LedgerTimeout)
	}
	if cfg.ReleaseAttemptLimit != 0 {
		t.Fatalf("expected default limit on malformed input, got %d", cfg.ReleaseAttemptLimit)
	}
}
