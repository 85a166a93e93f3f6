// handler.go -- AuthHandler dependencies and consumer-side interfaces.
package auth

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/hestia-auth/hestia/internal/mail"
	"github.com/hestia-auth/hestia/internal/store"

	"github.com/gofrs/uuid/v5"
)

// Store defines database operations needed by auth handlers.
// Satisfied by *store.PostgresStore -- defined here (at consumer) per Go convention.
type Store interface {
	// CreateUser inserts a new inactive user with normalized email and Argon2id hash.
	CreateUser(ctx context.Context, id uuid.UUID, email, passwordHash string) error

	// GetUserByEmail fetches a user by normalized email.
	// Returns store.ErrUserNotFound if no row matches.
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)

	// GetUserByID fetches a user by primary key.
	// Returns store.ErrUserNotFound if no row matches.
	GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error)

	// ActivateUser sets is_active = true for the user.
	ActivateUser(ctx context.Context, id uuid.UUID) error

	// UpdateUserPassword replaces the stored password hash.
	UpdateUserPassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	// MarkLockoutNotified atomically flips the one-shot lockout flag.
	// Returns true only for the caller whose statement did the flip.
	MarkLockoutNotified(ctx context.Context, id uuid.UUID) (bool, error)

	// ClearLockoutNotified re-arms the one-shot lockout flag.
	ClearLockoutNotified(ctx context.Context, id uuid.UUID) error

	// RecordLoginAudit appends a login audit row. Best-effort.
	RecordLoginAudit(ctx context.Context, a *store.LoginAudit) error

	// CheckHealth pings the database; used by the health endpoint.
	CheckHealth(ctx context.Context) error
}

// AttemptTracker counts failed logins per identity and per source address.
// Satisfied by *store.RedisAttemptTracker -- defined here per Go convention.
type AttemptTracker interface {
	// RecordFailure registers a failed attempt against both scopes.
	RecordFailure(ctx context.Context, identity, source string) error

	// RecordSuccess clears the identity scope and the succeeding source scope.
	RecordSuccess(ctx context.Context, identity, source string) error

	// IsLocked reports whether either scope is locked out (OR semantics).
	IsLocked(ctx context.Context, identity, source string) (bool, error)

	// CheckHealth pings the backing store; used by the health endpoint.
	CheckHealth(ctx context.Context) error
}

// AuthHandler holds dependencies for all HTTP handlers and middleware.
type AuthHandler struct {
	PS Store
	AT AttemptTracker
	ML mail.Mailer
	TK *StateTokenGenerator
	JW *JWTManager

	// Policy applied to new passwords at registration, reset, and change.
	Policy PasswordPolicy

	// FrontendURL is the base for links embedded in outbound email.
	FrontendURL string
}

// normalizeEmail applies the write-time normalization rule: trim + lowercase.
// Every handler normalizes before touching the store or the tracker.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// clientIP extracts the bare client IP from the request.
// RemoteAddr usually includes a port; chi's RealIP middleware may have
// already replaced it with a bare header-derived address.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// confirmEmailLink builds the activation link for the emailed uid + token.
func (h *AuthHandler) confirmEmailLink(uid, token string) string {
	return h.FrontendURL + "/api/registration/confirm-email/" + uid + "/" + token + "/"
}

// resetPasswordLink builds the password reset link for the emailed uid + token.
func (h *AuthHandler) resetPasswordLink(uid, token string) string {
	return h.FrontendURL + "/forget-password-reset/" + uid + "/" + token + "/"
}

// audit records a login attempt outcome. Failures are logged, never surfaced:
// the audit trail must not affect the response.
func (h *AuthHandler) audit(r *http.Request, email string, success bool, reason string) {
	ip := clientIP(r)
	ua := r.UserAgent()
	err := h.PS.RecordLoginAudit(r.Context(), &store.LoginAudit{
		Email:     email,
		IPAddress: &ip,
		UserAgent: &ua,
		Success:   success,
		Reason:    reason,
	})
	if err != nil {
		logWarn(r, "failed to record login audit", "error", err)
	}
}
