// Package store handles all database and cache interactions.
//
// postgres.go -- pgxpool connection setup and queries.
// Creates a connection pool at startup, shared across all handlers.
// All queries use parameterized statements (no string concatenation).
package store

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore wraps a pgx connection pool for user and audit queries.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a verified connection pool to PostgreSQL and
// returns a ready-to-use store. Call once at startup from main.go; the
// returned store is safe for concurrent use.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool}, nil
}

// Close shuts down the connection pool and releases all resources.
// Call via defer in main.go after creating the store.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// CheckHealth pings Postgres; used by the health endpoint.
func (s *PostgresStore) CheckHealth(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const userColumns = `id, email, password_hash, is_active, lockout_email_sent, created_at, updated_at`

// CreateUser inserts a new inactive user with email + password credentials.
// The caller generates the UUIDv7, normalizes the email, and hashes the
// password BEFORE calling this. Returns the raw pgx error; the handler
// inspects it for unique violations (duplicate email).
func (s *PostgresStore) CreateUser(ctx context.Context, id uuid.UUID, email, passwordHash string) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)",
		id, email, passwordHash)
	return err
}

// GetUserByEmail fetches a user by normalized email.
// Returns ErrUserNotFound if no row matches.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email)
	return scanUser(row)
}

// GetUserByID fetches a user by primary key.
// Returns ErrUserNotFound if no row matches.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsActive,
		&u.LockoutEmailSent, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ActivateUser sets is_active = true for the user if not already active.
func (s *PostgresStore) ActivateUser(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE users SET is_active = TRUE, updated_at = now() WHERE id = $1", id)
	return err
}

// UpdateUserPassword replaces the stored password hash for the user.
// Changing the hash also invalidates every outstanding reset token, since
// token validity is recomputed from the current hash.
func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1",
		id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// MarkLockoutNotified flips lockout_email_sent to true and reports whether
// this call did the flip. The WHERE clause makes read-and-set a single
// statement, so under concurrent locked-out requests exactly one caller
// observes true and sends the lockout email.
func (s *PostgresStore) MarkLockoutNotified(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		"UPDATE users SET lockout_email_sent = TRUE, updated_at = now() WHERE id = $1 AND lockout_email_sent = FALSE",
		id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ClearLockoutNotified re-arms the one-shot lockout notification after a
// successful authentication.
func (s *PostgresStore) ClearLockoutNotified(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE users SET lockout_email_sent = FALSE, updated_at = now() WHERE id = $1 AND lockout_email_sent = TRUE",
		id)
	return err
}

// RecordLoginAudit appends one row to the login audit trail.
// Best-effort from the caller's perspective; failures are logged, not surfaced.
func (s *PostgresStore) RecordLoginAudit(ctx context.Context, a *LoginAudit) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO login_audit (email, ip_address, user_agent, success, reason)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.Email, a.IPAddress, a.UserAgent, a.Success, a.Reason)
	return err
}
