package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/staffdir/internal/audit"
)

const minSecretLength = 32

type Config struct {
	// Server
	Port string
	Env  string // development, production

	// Database; empty runs on the in-memory store (development only)
	DatabaseURL string

	// Tokens
	JWTSecret string
	TokenTTL  time.Duration

	// Audit
	AuditRetentionDays int
	AuditSweepInterval time.Duration

	// SMTP
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPass      string
	SMTPFromEmail string
	SMTPFromName  string
	AdminEmail    string

	// First super-admin, created when no admin exists
	SeedAdminUsername string
	SeedAdminEmail    string
	SeedAdminPassword string

	LoginRatePerMinute int
	SecureCookies      bool
}

// Load reads .env (if present), the environment and command-line flags.
func Load() (*Config, error) {
	// Load .env file if it exists (don't error if missing)
	_ = godotenv.Load()

	cfg, err := FromEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}

	flag.StringVar(&cfg.Port, "port", cfg.Port, "Server port")
	flag.StringVar(&cfg.Env, "env", cfg.Env, "Environment (development, production)")
	flag.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection string")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from lookup without validating it.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	var errs []error
	cfg := &Config{
		Port:              get("PORT", "8080"),
		Env:               get("ENV", "development"),
		DatabaseURL:       get("DATABASE_URL", ""),
		JWTSecret:         get("JWT_SECRET", ""),
		SMTPHost:          get("SMTP_HOST", ""),
		SMTPUser:          get("SMTP_USER", ""),
		SMTPPass:          get("SMTP_PASS", ""),
		SMTPFromEmail:     get("SMTP_FROM_EMAIL", ""),
		SMTPFromName:      get("SMTP_FROM_NAME", "University Staff Directory"),
		AdminEmail:        get("ADMIN_EMAIL", ""),
		SeedAdminUsername: get("SEED_ADMIN_USERNAME", ""),
		SeedAdminEmail:    get("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword: get("SEED_ADMIN_PASSWORD", ""),
		SecureCookies:     get("SECURE_COOKIES", "false") == "true",
	}

	var err error
	if cfg.TokenTTL, err = ParseTTL(get("JWT_EXPIRES_IN", "7d")); err != nil {
		errs = append(errs, fmt.Errorf("JWT_EXPIRES_IN: %w", err))
	}
	if cfg.AuditSweepInterval, err = time.ParseDuration(get("AUDIT_SWEEP_INTERVAL", "1h")); err != nil {
		errs = append(errs, fmt.Errorf("AUDIT_SWEEP_INTERVAL: %w", err))
	}
	if cfg.AuditRetentionDays, err = strconv.Atoi(get("AUDIT_RETENTION_DAYS", "90")); err != nil {
		errs = append(errs, fmt.Errorf("AUDIT_RETENTION_DAYS: %w", err))
	}
	if cfg.SMTPPort, err = strconv.Atoi(get("SMTP_PORT", "587")); err != nil {
		errs = append(errs, fmt.Errorf("SMTP_PORT: %w", err))
	}
	if cfg.LoginRatePerMinute, err = strconv.Atoi(get("LOGIN_RATE_PER_MINUTE", "10")); err != nil {
		errs = append(errs, fmt.Errorf("LOGIN_RATE_PER_MINUTE: %w", err))
	}
	return cfg, errors.Join(errs...)
}

// ParseTTL accepts a Go duration ("12h") or a whole number of days ("7d").
func ParseTTL(s string) (time.Duration, error) {
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, err
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %q", s)
	}
	return d, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength)
	}
	if c.DatabaseURL == "" && !c.IsDevelopment() {
		return fmt.Errorf("DATABASE_URL is required outside development")
	}
	if c.AuditRetentionDays < 1 || c.AuditRetentionDays > audit.MaxRetentionDays {
		return fmt.Errorf("AUDIT_RETENTION_DAYS must be between 1 and %d", audit.MaxRetentionDays)
	}
	if c.AuditSweepInterval <= 0 {
		return fmt.Errorf("AUDIT_SWEEP_INTERVAL must be positive")
	}
	if c.LoginRatePerMinute < 1 {
		return fmt.Errorf("LOGIN_RATE_PER_MINUTE must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
