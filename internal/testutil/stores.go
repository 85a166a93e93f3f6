// stores.go
//
// Shared mock implementations of auth.Store, auth.AttemptTracker, and
// mail.Mailer. Imported by test files across packages to avoid duplicate
// mock definitions.
package testutil

import (
	"context"
	"sync"

	"github.com/gofrs/uuid/v5"
	"github.com/hestia-auth/hestia/internal/store"
)

// MockStore implements auth.Store for tests.
// Always stateful...Users is a map keyed by email, like a real store.
// Use *Err fields to inject errors for specific operations.
// Use NewMockStore to seed users; or construct directly and set *Err fields for error-path tests.
type MockStore struct {
	// Error injection...zero value means no error
	CreateUserErr     error
	GetUserErr        error
	ActivateUserErr   error
	UpdatePasswordErr error
	MarkNotifiedErr   error
	ClearNotifiedErr  error
	RecordAuditErr    error
	CheckHealthErr    error

	Users map[string]*store.User // keyed by email

	// AuditRows collects every recorded login attempt, in order.
	AuditRows []store.LoginAudit

	mu sync.Mutex
}

// NewMockStore returns a MockStore seeded with the given users, indexed by email.
func NewMockStore(users ...*store.User) *MockStore {
	ms := &MockStore{Users: make(map[string]*store.User)}
	for _, u := range users {
		ms.Users[u.Email] = u
	}
	return ms
}

func (m *MockStore) CreateUser(_ context.Context, id uuid.UUID, email, passwordHash string) error {
	if m.CreateUserErr != nil {
		return m.CreateUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Users == nil {
		m.Users = make(map[string]*store.User)
	}
	m.Users[email] = &store.User{ID: id, Email: email, PasswordHash: passwordHash}
	return nil
}

func (m *MockStore) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	if m.GetUserErr != nil {
		return nil, m.GetUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[email]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

func (m *MockStore) GetUserByID(_ context.Context, id uuid.UUID) (*store.User, error) {
	if m.GetUserErr != nil {
		return nil, m.GetUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (m *MockStore) ActivateUser(_ context.Context, id uuid.UUID) error {
	if m.ActivateUserErr != nil {
		return m.ActivateUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.ID == id {
			u.IsActive = true
			return nil
		}
	}
	return store.ErrUserNotFound
}

func (m *MockStore) UpdateUserPassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	if m.UpdatePasswordErr != nil {
		return m.UpdatePasswordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.ID == id {
			u.PasswordHash = passwordHash
			return nil
		}
	}
	return store.ErrUserNotFound
}

func (m *MockStore) MarkLockoutNotified(_ context.Context, id uuid.UUID) (bool, error) {
	if m.MarkNotifiedErr != nil {
		return false, m.MarkNotifiedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.ID == id {
			if u.LockoutEmailSent {
				return false, nil
			}
			u.LockoutEmailSent = true
			return true, nil
		}
	}
	return false, store.ErrUserNotFound
}

func (m *MockStore) ClearLockoutNotified(_ context.Context, id uuid.UUID) error {
	if m.ClearNotifiedErr != nil {
		return m.ClearNotifiedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.ID == id {
			u.LockoutEmailSent = false
			return nil
		}
	}
	return store.ErrUserNotFound
}

func (m *MockStore) RecordLoginAudit(_ context.Context, a *store.LoginAudit) error {
	if m.RecordAuditErr != nil {
		return m.RecordAuditErr
	}
	m.mu.Lock()
	m.AuditRows = append(m.AuditRows, *a)
	m.mu.Unlock()
	return nil
}

func (m *MockStore) CheckHealth(_ context.Context) error {
	return m.CheckHealthErr
}

// MockTracker implements auth.AttemptTracker for tests.
// Mirrors the Redis tracker's semantics in memory: per-scope counters, a lock
// set at the threshold, success clearing the succeeding request's own scopes.
// Time-based expiry is not modeled; tests that need expiry drive the real
// tracker.
type MockTracker struct {
	// Error injection...zero value means no error
	RecordFailureErr error
	RecordSuccessErr error
	IsLockedErr      error
	CheckHealthErr   error

	MaxFailures int // lock threshold; 0 disables locking

	failures map[string]int
	locks    map[string]bool

	mu sync.Mutex
}

// NewMockTracker returns an empty tracker locking after maxFailures failures.
func NewMockTracker(maxFailures int) *MockTracker {
	return &MockTracker{
		MaxFailures: maxFailures,
		failures:    make(map[string]int),
		locks:       make(map[string]bool),
	}
}

func (m *MockTracker) RecordFailure(_ context.Context, identity, source string) error {
	if m.RecordFailureErr != nil {
		return m.RecordFailureErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for scope, value := range map[string]string{"email": identity, "ip": source} {
		if value == "" {
			continue
		}
		key := scope + ":" + value
		m.failures[key]++
		if m.MaxFailures > 0 && m.failures[key] >= m.MaxFailures {
			m.locks[key] = true
		}
	}
	return nil
}

func (m *MockTracker) RecordSuccess(_ context.Context, identity, source string) error {
	if m.RecordSuccessErr != nil {
		return m.RecordSuccessErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for scope, value := range map[string]string{"email": identity, "ip": source} {
		if value == "" {
			continue
		}
		delete(m.failures, scope+":"+value)
		delete(m.locks, scope+":"+value)
	}
	return nil
}

func (m *MockTracker) IsLocked(_ context.Context, identity, source string) (bool, error) {
	if m.IsLockedErr != nil {
		return false, m.IsLockedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks["email:"+identity] || m.locks["ip:"+source], nil
}

func (m *MockTracker) CheckHealth(_ context.Context) error {
	return m.CheckHealthErr
}

// Failures returns the current failure count for a scope:value pair.
func (m *MockTracker) Failures(scope, value string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[scope+":"+value]
}

// SentMail records one delivered (mock) email.
type SentMail struct {
	Kind    string // "confirmation", "lockout", "reset_request", "change_confirmation"
	ToEmail string
	Link    string
}

// MockMailer implements mail.Mailer for tests, recording every send.
// Use SendErr to inject a failure for all sends.
type MockMailer struct {
	SendErr error

	Sent []SentMail

	mu sync.Mutex
}

func (m *MockMailer) record(kind, toEmail, link string) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.mu.Lock()
	m.Sent = append(m.Sent, SentMail{Kind: kind, ToEmail: toEmail, Link: link})
	m.mu.Unlock()
	return nil
}

func (m *MockMailer) SendConfirmation(_ context.Context, toEmail, link string) error {
	return m.record("confirmation", toEmail, link)
}

func (m *MockMailer) SendLockout(_ context.Context, toEmail, link string) error {
	return m.record("lockout", toEmail, link)
}

func (m *MockMailer) SendResetRequest(_ context.Context, toEmail, link string) error {
	return m.record("reset_request", toEmail, link)
}

func (m *MockMailer) SendChangeConfirmation(_ context.Context, toEmail string) error {
	return m.record("change_confirmation", toEmail, "")
}

// SentKinds returns the kinds of all recorded sends, in order.
func (m *MockMailer) SentKinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]string, len(m.Sent))
	for i, s := range m.Sent {
		kinds[i] = s.Kind
	}
	return kinds
}
