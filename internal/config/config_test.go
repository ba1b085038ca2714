package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.FeePercent.Equal(decimal.RequireFromString("2.0")) {
		t.Fatalf("fee percent = %s", cfg.FeePercent)
	}
	if !cfg.UnverifiedLimit.Equal(decimal.RequireFromString("1500.00")) {
		t.Fatalf("unverified limit = %s", cfg.UnverifiedLimit)
	}
	if cfg.DepositVerifyBudget != 180*time.Second {
		t.Fatalf("verify budget = %s", cfg.DepositVerifyBudget)
	}
	if cfg.WithdrawalPollInterval != 5*time.Second {
		t.Fatalf("withdrawal poll interval = %s", cfg.WithdrawalPollInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("UNVERIFIED_LIMIT", "3000.00")
	t.Setenv("DEPOSIT_VERIFY_BUDGET", "60")
	t.Setenv("DEPOSIT_POLL_INTERVAL", "500ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.UnverifiedLimit.Equal(decimal.RequireFromString("3000.00")) {
		t.Fatalf("unverified limit = %s", cfg.UnverifiedLimit)
	}
	// Bare integers read as seconds, Go syntax as durations.
	if cfg.DepositVerifyBudget != time.Minute {
		t.Fatalf("verify budget = %s", cfg.DepositVerifyBudget)
	}
	if cfg.DepositPollInterval != 500*time.Millisecond {
		t.Fatalf("poll interval = %s", cfg.DepositPollInterval)
	}
}

func TestLoadRejectsInvertedBounds(t *testing.T) {
	t.Setenv("MIN_WITHDRAWAL", "100.00")
	t.Setenv("MAX_WITHDRAWAL", "50.00")
	if _, err := Load(); err == nil {
		t.Fatal("inverted bounds accepted")
	}
}

func TestLoadRejectsNegativeThreshold(t *testing.T) {
	t.Setenv("FEE_PERCENT", "-1")
	if _, err := Load(); err == nil {
		t.Fatal("negative fee percent accepted")
	}
}

func TestAddress(t *testing.T) {
	if got := (Config{Port: "8080"}).Address(); got != ":8080" {
		t.Fatalf("address = %q", got)
	}
	if got := (Config{Port: ":9090"}).Address(); got != ":9090" {
		t.Fatalf("address = %q", got)
	}
}
