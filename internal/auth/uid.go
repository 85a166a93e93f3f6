// uid.go -- URL-safe user ID encoding for emailed links.
package auth

import (
	"encoding/base64"
	"fmt"

	"github.com/gofrs/uuid/v5"
)

// EncodeUID encodes a user ID for embedding in an emailed link path segment.
func EncodeUID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

// DecodeUID reverses EncodeUID. Fails closed on any malformed input.
func DecodeUID(s string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decoding uid: %w", err)
	}
	id, err := uuid.FromString(string(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing uid: %w", err)
	}
	return id, nil
}
