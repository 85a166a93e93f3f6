// jwt.go -- Access/refresh token pair issuance and verification.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned by Verify* for any token that fails signature,
// expiry, or type checks. Callers get no further detail by design of the API.
var ErrInvalidToken = errors.New("token is invalid or expired")

// token type values carried in the "typ" claim so a refresh token can never
// pass as an access token or vice versa.
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims is the JWT payload. Subject holds the user ID.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"typ"`
}

// TokenPair is the login response body: a short-lived access token and a
// long-lived refresh token.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// JWTManager signs and verifies HS256 token pairs.
type JWTManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	// now is overridable in tests.
	now func() time.Time
}

// NewJWTManager builds a manager keyed with secret.
func NewJWTManager(secret []byte, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssuePair signs a fresh access + refresh token pair for the user.
func (m *JWTManager) IssuePair(userID uuid.UUID) (TokenPair, error) {
	access, err := m.sign(userID, tokenTypeAccess, m.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("signing access token: %w", err)
	}
	refresh, err := m.sign(userID, tokenTypeRefresh, m.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("signing refresh token: %w", err)
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// VerifyAccess validates an access token and returns the user ID it carries.
func (m *JWTManager) VerifyAccess(token string) (uuid.UUID, error) {
	return m.verify(token, tokenTypeAccess)
}

// VerifyRefresh validates a refresh token and returns the user ID it carries.
func (m *JWTManager) VerifyRefresh(token string) (uuid.UUID, error) {
	return m.verify(token, tokenTypeRefresh)
}

func (m *JWTManager) sign(userID uuid.UUID, typ string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: typ,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *JWTManager) verify(token, wantType string) (uuid.UUID, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return m.now() }))
	if err != nil || !parsed.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
