// password.go

// Argon2id password hashing, verification, and input validation.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	netmail "net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

const (
	argonSaltLen = 16
	argonTime    = uint32(3)
	argonMemory  = uint32(64 * 1024)
	argonThreads = uint8(2)
	argonKeyLen  = uint32(32)
)

// HashPassword returns PHC-formatted Argon2id hash of plaintext password.
// Format: $argon2id$v=19$m=65536,t=3,p=2$<base64 salt>$<base64 hash>
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// VerifyPassword checks plaintext password against stored Argon2id hash.
// Extracts params from stored hash so old passwords verify after param changes.
// Uses constant-time comparison to prevent timing attacks.
func VerifyPassword(password, encodedHash string) (bool, error) {
	// Format: $argon2id$v=19$m=65536,t=3,p=2$<base64 salt>$<base64 hash>
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, fmt.Errorf("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return false, fmt.Errorf("unsupported algorithm")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("parsing hash version: %w", err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("unsupported argon2 version: %d", version)
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, fmt.Errorf("parsing hash params: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("decoding salt: %w", err)
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("decoding hash: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(expectedHash)))

	return subtle.ConstantTimeCompare(hash, expectedHash) == 1, nil
}

// ValidateEmail checks format and length constraints; returns a failure
// message or empty string. RFC 5321: min ~5 chars (a@b.c), max 254.
func ValidateEmail(email string) string {
	if email == "" {
		return "This field is required."
	}
	if len(email) < 5 || len(email) > 254 {
		return "Enter a valid email address."
	}
	if _, err := netmail.ParseAddress(email); err != nil {
		return "Enter a valid email address."
	}
	return ""
}

// PasswordPolicy defines password complexity rules applied at registration,
// reset, and password change.
//
//	MinLength is the minimum rune count (user-perceived chars); 0 skips minimum enforcement.
//	MaxLength is the maximum byte count (Argon2id DoS guard); 0 skips maximum enforcement.
//	RequireUppercase, RequireDigit, and RequireSpecial each gate a character-class check;
//	false means skip that check entirely. Entirely numeric passwords are always
//	rejected. The zero value enforces only the numeric rule.
type PasswordPolicy struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireDigit     bool
	RequireSpecial   bool
}

// DefaultPasswordPolicy mirrors the validators the front end was built
// against: minimum 8 characters, 128-byte cap, no class requirements.
var DefaultPasswordPolicy = PasswordPolicy{MinLength: 8, MaxLength: 128}

// specialChars defines which characters satisfy the RequireSpecial rule.
// All printable non-alphanumeric ASCII punctuation and symbols.
const specialChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Validate checks password against every enabled rule and returns a slice of
// human-readable failure messages; an empty slice means the password is valid.
func (p PasswordPolicy) Validate(password string) []string {
	var failures []string

	if password == "" {
		return []string{"This field is required."}
	}

	if p.MinLength > 0 && utf8.RuneCountInString(password) < p.MinLength {
		failures = append(failures, fmt.Sprintf("This password is too short. It must contain at least %d characters.", p.MinLength))
	}
	if p.MaxLength > 0 && len(password) > p.MaxLength {
		failures = append(failures, fmt.Sprintf("This password is too long. It must contain at most %d characters.", p.MaxLength))
	}

	allDigits := true
	var seenUpper, seenDigit, seenSpecial bool
	for _, r := range password {
		if unicode.IsControl(r) {
			return []string{"Password contains invalid characters."}
		}
		if !unicode.IsDigit(r) {
			allDigits = false
		}
		switch {
		case unicode.IsUpper(r):
			seenUpper = true
		case unicode.IsDigit(r):
			seenDigit = true
		case strings.ContainsRune(specialChars, r):
			seenSpecial = true
		}
	}

	if allDigits {
		failures = append(failures, "This password is entirely numeric.")
	}
	if p.RequireUppercase && !seenUpper {
		failures = append(failures, "Password must contain at least one uppercase letter.")
	}
	if p.RequireDigit && !seenDigit {
		failures = append(failures, "Password must contain at least one digit.")
	}
	if p.RequireSpecial && !seenSpecial {
		failures = append(failures, "Password must contain at least one special character.")
	}

	return failures
}
