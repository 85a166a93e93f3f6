package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hestia-auth/hestia/internal/auth"
	"github.com/hestia-auth/hestia/internal/config"
	"github.com/hestia-auth/hestia/internal/mail"
	"github.com/hestia-auth/hestia/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed migrations/*.sql
var migrationsDir embed.FS

func main() {
	// Load config first so we can set log level
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback logger before config is available
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	// Include source location in log entries at debug level only.
	addSrc := cfg.LogLevel == slog.LevelDebug

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: addSrc,
	})))

	// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run() is a separate func so deferred closes always execute before os.Exit.
	if err := run(ctx, cfg, nil); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// run holds all server logic and returns error instead of calling os.Exit,
// so deferred resource cleanup (ps.Close, rdb.Close) always runs.
// Shuts down when ctx is cancelled (signal handling is the caller's concern).
// If ready is non-nil, the server's base URL is sent on it once the listener is bound.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	ps, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to set up postgres store: %w", err)
	}
	defer ps.Close()

	// Run database migrations
	migrationsFS, err := fs.Sub(migrationsDir, "migrations")
	if err != nil {
		return fmt.Errorf("failed to access embedded migrations: %w", err)
	}
	if err := ps.Migrate(ctx, migrationsFS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Shared Redis client; the attempt tracker and the mail queue use one pool.
	rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to set up redis client: %w", err)
	}
	defer rdb.Close()

	at := store.NewRedisAttemptTracker(rdb, store.LockoutPolicy{
		MaxFailures: cfg.LockoutMaxFailures,
		Window:      cfg.LockoutWindow,
		Cooldown:    cfg.LockoutCooldown,
	})

	// Mailer selection: SMTP configured -> queue + background worker,
	// otherwise discard outbound mail (local dev).
	var ml mail.Mailer = &mail.NopMailer{}
	if cfg.SMTPHost != "" {
		smtp := mail.NewSMTPMailer(mail.SMTPConfig{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUsername,
			Password:    cfg.SMTPPassword,
			FromAddress: cfg.SMTPFromAddress,
		})
		qm := mail.NewQueuedMailer(smtp, rdb, mail.DefaultMaxQueueSize)
		go qm.StartWorker(ctx)
		ml = qm
	}

	secret := []byte(cfg.SecretKey)
	h := auth.AuthHandler{
		PS:          ps,
		AT:          at,
		ML:          ml,
		TK:          auth.NewStateTokenGenerator(secret, cfg.ActivationTokenTTL, cfg.ResetTokenTTL),
		JW:          auth.NewJWTManager(secret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		Policy:      auth.DefaultPasswordPolicy,
		FrontendURL: cfg.FrontendURL,
	}

	// Bind listener; ":0" picks a free port (useful in tests).
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{Handler: buildRouter(&h)}

	// Start server in a goroutine; run() continues past this.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("hestia listening", "addr", ln.Addr().String())
		// Send error only if server stops for a reason other than explicit shutdown.
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	// Wait for server error or shutdown signal from ctx.
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildRouter wires all routes and middleware.
// Called from run() and from smoke tests.
func buildRouter(h *auth.AuthHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Trailing slashes match the paths the front end was built against.
	r.Route("/api", func(r chi.Router) {
		r.Get("/health/", h.CheckHealth)
		r.Post("/login/", h.Login)
		r.Post("/token/refresh/", h.Refresh)
		r.Post("/registration/", h.Register)
		r.Get("/registration/confirm-email/{uid}/{token}/", h.ConfirmEmail)
		r.Post("/reset-password/send/", h.SendResetMail)
		r.Post("/reset-password/{uid}/{token}/", h.ResetPassword)

		// Authentication required routes
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Post("/reset-password/logged-in/", h.ChangePassword)
			r.Get("/test/", h.Hello)
		})
	})

	return r
}
