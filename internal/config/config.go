package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultAppName        = "VaultPay"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultAPIBaseURL     = "http://localhost:8080"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour

	// Business thresholds. These mirror the production backend's values
	// and must stay aligned with it; override only for sandboxes.
	defaultFeePercent      = "2.0"
	defaultMinWithdrawal   = "1.00"
	defaultMaxWithdrawal   = "50000.00"
	defaultUnverifiedLimit = "1500.00"

	defaultDepositVerifyBudget    = 180 * time.Second
	defaultDepositPollInterval    = 3 * time.Second
	defaultWithdrawalPollInterval = 5 * time.Second
)

// Config captures runtime configuration for both the client core and the
// sandbox backend, loaded from environment variables.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	// Client side.
	APIBaseURL string

	// Sandbox backend. DatabaseURL and RedisURL are optional in
	// development; the sandbox falls back to in-memory storage.
	DatabaseURL    string
	RedisURL       string
	TokenSecret    string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// Money-movement thresholds.
	FeePercent      decimal.Decimal
	MinWithdrawal   decimal.Decimal
	MaxWithdrawal   decimal.Decimal
	UnverifiedLimit decimal.Decimal

	// Verification timers.
	DepositVerifyBudget    time.Duration
	DepositPollInterval    time.Duration
	WithdrawalPollInterval time.Duration
}

// Load reads configuration values from the environment and populates a
// Config instance. Missing business thresholds keep their defaults.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		APIBaseURL:     getEnv("API_BASE_URL", defaultAPIBaseURL),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		TokenSecret:    getEnv("TOKEN_SECRET", "sandbox-secret"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,

		DepositVerifyBudget:    defaultDepositVerifyBudget,
		DepositPollInterval:    defaultDepositPollInterval,
		WithdrawalPollInterval: defaultWithdrawalPollInterval,
	}

	var err error
	if cfg.FeePercent, err = getDecimal("FEE_PERCENT", defaultFeePercent); err != nil {
		return Config{}, err
	}
	if cfg.MinWithdrawal, err = getDecimal("MIN_WITHDRAWAL", defaultMinWithdrawal); err != nil {
		return Config{}, err
	}
	if cfg.MaxWithdrawal, err = getDecimal("MAX_WITHDRAWAL", defaultMaxWithdrawal); err != nil {
		return Config{}, err
	}
	if cfg.UnverifiedLimit, err = getDecimal("UNVERIFIED_LIMIT", defaultUnverifiedLimit); err != nil {
		return Config{}, err
	}

	if cfg.DepositVerifyBudget, err = getDuration("DEPOSIT_VERIFY_BUDGET", cfg.DepositVerifyBudget); err != nil {
		return Config{}, err
	}
	if cfg.DepositPollInterval, err = getDuration("DEPOSIT_POLL_INTERVAL", cfg.DepositPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.WithdrawalPollInterval, err = getDuration("WITHDRAWAL_POLL_INTERVAL", cfg.WithdrawalPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = getDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}

	if cfg.MinWithdrawal.GreaterThan(cfg.MaxWithdrawal) {
		return Config{}, fmt.Errorf("MIN_WITHDRAWAL %s exceeds MAX_WITHDRAWAL %s", cfg.MinWithdrawal, cfg.MaxWithdrawal)
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDecimal(key, fallback string) (decimal.Decimal, error) {
	raw := getEnv(key, fallback)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
