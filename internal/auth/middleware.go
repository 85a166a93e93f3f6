// middleware.go -- Bearer token authentication middleware.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofrs/uuid/v5"
)

// ctxKey is unexported so other packages can't collide with our context keys.
type ctxKey int

const userIDKey ctxKey = iota

// UserIDFromContext returns the authenticated user ID stored by RequireAuth.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// RequireAuth rejects requests without a valid Bearer access token and stores
// the authenticated user ID in the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			Detail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			Detail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}

		userID, err := h.JW.VerifyAccess(token)
		if err != nil {
			Detail(w, http.StatusUnauthorized, "Token is invalid or expired")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
