// config.go

// Environment variable loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all env configuration vars for Hestia.
type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        string
	LogLevel    slog.Level

	// SecretKey signs JWTs and the stateless activation/reset tokens.
	// Required, 32+ bytes.
	SecretKey string

	// FrontendURL is the base for links embedded in outbound email
	// (confirmation and reset).
	FrontendURL string

	// SMTP configuration for outbound email. All optional -- empty Host disables sending.
	SMTPHost        string
	SMTPPort        string // defaults to 587
	SMTPUsername    string
	SMTPPassword    string
	SMTPFromAddress string

	// Lockout policy for failed logins, applied independently per identity
	// and per source address. Defaults: 5 failures, 30m window, 30m cooldown.
	LockoutMaxFailures int
	LockoutWindow      time.Duration
	LockoutCooldown    time.Duration

	// Token lifetimes. Activation/reset tokens are the emailed links;
	// access/refresh are the JWT session pair.
	ActivationTokenTTL time.Duration
	ResetTokenTTL      time.Duration
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}

// LoadConfig reads environment variables and returns a validated Config.
// Returns an error if required variables (DATABASE_URL, REDIS_URL, SECRET_KEY)
// are missing or invalid.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg.SecretKey = os.Getenv("SECRET_KEY")
	if len(cfg.SecretKey) < 32 {
		return nil, fmt.Errorf("SECRET_KEY is required and must be at least 32 bytes")
	}

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "7410"
	}

	// Parse log level, default to info
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	cfg.FrontendURL = strings.TrimSuffix(os.Getenv("FRONTEND_URL"), "/")

	// SMTP -- all optional; empty Host means no email sending (NopMailer).
	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.SMTPPort = os.Getenv("SMTP_PORT")
	if cfg.SMTPPort == "" {
		cfg.SMTPPort = "587"
	}
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFromAddress = os.Getenv("SMTP_FROM")

	// When SMTP is configured the link base must be present and use HTTPS.
	// Activation/reset tokens must not travel over plain HTTP.
	if cfg.SMTPHost != "" && !strings.HasPrefix(cfg.FrontendURL, "https://") {
		return nil, fmt.Errorf("FRONTEND_URL must be set and start with https:// when SMTP is configured")
	}

	// Lockout policy. Misconfigured values fall back to the default so a bad
	// env doesn't silently disable brute-force protection.
	cfg.LockoutMaxFailures = envInt("LOCKOUT_MAX_FAILURES", 5)
	cfg.LockoutWindow = envDuration("LOCKOUT_WINDOW", 30*time.Minute)
	cfg.LockoutCooldown = envDuration("LOCKOUT_COOLDOWN", 30*time.Minute)

	cfg.ActivationTokenTTL = envDuration("ACTIVATION_TOKEN_TTL", 72*time.Hour)
	cfg.ResetTokenTTL = envDuration("RESET_TOKEN_TTL", 1*time.Hour)
	cfg.AccessTokenTTL = envDuration("ACCESS_TOKEN_TTL", 15*time.Minute)
	cfg.RefreshTokenTTL = envDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour)

	return cfg, nil
}

// envInt reads an env var as int, returning def if missing or unparseable.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

// envDuration reads an env var as time.Duration, returning def if missing or unparseable.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
