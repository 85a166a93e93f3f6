package config

import (
	"log/slog"
	"testing"
	"time"
)

// --- LoadConfig ---

func TestLoadConfig(t *testing.T) {
	// Helper sets the minimum required env vars for a valid config
	setRequired := func(t *testing.T) {
		t.Helper()
		t.Setenv("DATABASE_URL", "postgres://localhost/hestia")
		t.Setenv("REDIS_URL", "redis://localhost:6379")
		t.Setenv("SECRET_KEY", "0123456789abcdef0123456789abcdef")
	}

	t.Run("returns valid config with all required vars", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.DatabaseURL != "postgres://localhost/hestia" {
			t.Errorf("DatabaseURL: expected %q, got %q", "postgres://localhost/hestia", cfg.DatabaseURL)
		}
		if cfg.RedisURL != "redis://localhost:6379" {
			t.Errorf("RedisURL: expected %q, got %q", "redis://localhost:6379", cfg.RedisURL)
		}
	})

	t.Run("errors when DATABASE_URL is missing", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("REDIS_URL", "redis://localhost:6379")
		t.Setenv("SECRET_KEY", "0123456789abcdef0123456789abcdef")

		if _, err := LoadConfig(); err == nil {
			t.Fatal("expected error for missing DATABASE_URL, got nil")
		}
	})

	t.Run("errors when REDIS_URL is missing", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/hestia")
		t.Setenv("REDIS_URL", "")
		t.Setenv("SECRET_KEY", "0123456789abcdef0123456789abcdef")

		if _, err := LoadConfig(); err == nil {
			t.Fatal("expected error for missing REDIS_URL, got nil")
		}
	})

	t.Run("errors when SECRET_KEY is missing or short", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/hestia")
		t.Setenv("REDIS_URL", "redis://localhost:6379")

		for _, key := range []string{"", "tooshort"} {
			t.Setenv("SECRET_KEY", key)
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error for SECRET_KEY %q, got nil", key)
			}
		}
	})

	t.Run("defaults PORT to 7410", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PORT", "")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Port != "7410" {
			t.Errorf("Port: expected %q, got %q", "7410", cfg.Port)
		}
	})

	t.Run("uses custom PORT when set", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PORT", "9090")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Port != "9090" {
			t.Errorf("Port: expected %q, got %q", "9090", cfg.Port)
		}
	})

	t.Run("parses LOG_LEVEL", func(t *testing.T) {
		setRequired(t)
		t.Setenv("LOG_LEVEL", "debug")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.LogLevel != slog.LevelDebug {
			t.Errorf("LogLevel: expected debug, got %v", cfg.LogLevel)
		}
	})

	t.Run("lockout policy defaults", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.LockoutMaxFailures != 5 {
			t.Errorf("LockoutMaxFailures: expected 5, got %d", cfg.LockoutMaxFailures)
		}
		if cfg.LockoutWindow != 30*time.Minute {
			t.Errorf("LockoutWindow: expected 30m, got %v", cfg.LockoutWindow)
		}
		if cfg.LockoutCooldown != 30*time.Minute {
			t.Errorf("LockoutCooldown: expected 30m, got %v", cfg.LockoutCooldown)
		}
	})

	t.Run("invalid lockout values fall back to defaults", func(t *testing.T) {
		setRequired(t)
		t.Setenv("LOCKOUT_MAX_FAILURES", "-3")
		t.Setenv("LOCKOUT_WINDOW", "not-a-duration")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.LockoutMaxFailures != 5 {
			t.Errorf("LockoutMaxFailures: expected default 5, got %d", cfg.LockoutMaxFailures)
		}
		if cfg.LockoutWindow != 30*time.Minute {
			t.Errorf("LockoutWindow: expected default 30m, got %v", cfg.LockoutWindow)
		}
	})

	t.Run("token TTL defaults", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.ActivationTokenTTL != 72*time.Hour {
			t.Errorf("ActivationTokenTTL: expected 72h, got %v", cfg.ActivationTokenTTL)
		}
		if cfg.ResetTokenTTL != time.Hour {
			t.Errorf("ResetTokenTTL: expected 1h, got %v", cfg.ResetTokenTTL)
		}
		if cfg.AccessTokenTTL != 15*time.Minute {
			t.Errorf("AccessTokenTTL: expected 15m, got %v", cfg.AccessTokenTTL)
		}
		if cfg.RefreshTokenTTL != 7*24*time.Hour {
			t.Errorf("RefreshTokenTTL: expected 168h, got %v", cfg.RefreshTokenTTL)
		}
	})

	t.Run("trims trailing slash from FRONTEND_URL", func(t *testing.T) {
		setRequired(t)
		t.Setenv("FRONTEND_URL", "https://app.example.com/")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.FrontendURL != "https://app.example.com" {
			t.Errorf("FrontendURL: expected trimmed, got %q", cfg.FrontendURL)
		}
	})

	t.Run("errors when SMTP is set without https FRONTEND_URL", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SMTP_HOST", "smtp.example.com")

		for _, url := range []string{"", "http://app.example.com"} {
			t.Setenv("FRONTEND_URL", url)
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error for FRONTEND_URL %q with SMTP configured, got nil", url)
			}
		}
	})

	t.Run("SMTP_PORT defaults to 587", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SMTP_HOST", "smtp.example.com")
		t.Setenv("FRONTEND_URL", "https://app.example.com")
		t.Setenv("SMTP_PORT", "")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.SMTPPort != "587" {
			t.Errorf("SMTPPort: expected 587, got %q", cfg.SMTPPort)
		}
	})
}
