// models.go -- Shared domain types for the store package.
// Used by both Postgres (durable store) and Redis (attempt tracking).
package store

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ErrUserNotFound is returned by user lookups when no row matches.
// Callers use errors.Is so handlers can map it to generic credential errors.
var ErrUserNotFound = errors.New("user not found")

// User represents a row in the users table.
// Email is stored normalized: trimmed and lower-cased on every write.
type User struct {
	ID               uuid.UUID
	Email            string
	PasswordHash     string
	IsActive         bool
	LockoutEmailSent bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LoginAudit represents a row in the login_audit table.
// IPAddress and UserAgent are pointers -- nil means SQL NULL (e.g. attempts
// replayed from a queue or internal tooling).
type LoginAudit struct {
	Email     string
	IPAddress *string
	UserAgent *string
	Success   bool
	Reason    string
}

// LockoutPolicy defines the brute-force lockout behaviour for one scope
// (identity or source address). All three fields required.
type LockoutPolicy struct {
	MaxFailures int           // failures tolerated before the scope locks
	Window      time.Duration // rolling window failures accumulate within
	Cooldown    time.Duration // lock duration, re-armed by further qualifying failures
}
