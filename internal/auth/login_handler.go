// login_handler.go -- Login and token refresh endpoints.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hestia-auth/hestia/internal/store"
)

// dummyHash is a well-formed Argon2id hash that matches no password. Verified
// against when the email is unknown so response timing does not reveal
// whether the account exists.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// audit reasons recorded with each login attempt.
const (
	reasonBadCredentials = "bad_credentials"
	reasonLockedOut      = "locked_out"
	reasonNotConfirmed   = "email_not_confirmed"
	reasonOK             = "ok"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/login/. Checks the lockout state before touching
// credentials; on the transition into lockout it sends exactly one reset
// email. Credential failures feed the attempt tracker; success clears the
// caller's identity scope and re-arms the lockout notification.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Detail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fieldErrs := map[string][]string{}
	if req.Email == "" {
		fieldErrs["email"] = append(fieldErrs["email"], "This field is required.")
	}
	if req.Password == "" {
		fieldErrs["password"] = append(fieldErrs["password"], "This field is required.")
	}
	if len(fieldErrs) > 0 {
		FieldErrors(w, fieldErrs)
		return
	}

	email := normalizeEmail(req.Email)
	source := clientIP(r)

	locked, err := h.AT.IsLocked(r.Context(), email, source)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}
	if locked {
		h.notifyLockout(r, email)
		h.audit(r, email, false, reasonLockedOut)
		Detail(w, http.StatusForbidden, "Too many failed login attempts. Please check your emails")
		return
	}

	user, err := h.PS.GetUserByEmail(r.Context(), email)
	if err != nil && !errors.Is(err, store.ErrUserNotFound) {
		InternalServerError(w, r, err)
		return
	}

	// Unknown email burns the same Argon2id work as a wrong password so the
	// two failures are indistinguishable by timing.
	storedHash := dummyHash
	if user != nil {
		storedHash = user.PasswordHash
	}
	match, verr := VerifyPassword(req.Password, storedHash)
	if verr != nil {
		InternalServerError(w, r, verr)
		return
	}

	if user == nil || !match {
		if err := h.AT.RecordFailure(r.Context(), email, source); err != nil {
			logWarn(r, "failed to record login failure", "error", err)
		}
		logDebug(r, "login rejected", "reason", reasonBadCredentials)
		h.audit(r, email, false, reasonBadCredentials)
		Detail(w, http.StatusUnauthorized, "E-mail or password is incorrect")
		return
	}

	// Activation state is revealed only after the credentials checked out, so
	// an attacker can't probe which addresses hold unconfirmed accounts.
	// Inactive-account attempts carry valid credentials and don't count
	// toward lockout.
	if !user.IsActive {
		h.audit(r, email, false, reasonNotConfirmed)
		Detail(w, http.StatusUnauthorized, "Email is not confirmed")
		return
	}

	if err := h.AT.RecordSuccess(r.Context(), email, source); err != nil {
		logWarn(r, "failed to clear login failures", "error", err)
	}
	if user.LockoutEmailSent {
		if err := h.PS.ClearLockoutNotified(r.Context(), user.ID); err != nil {
			logWarn(r, "failed to re-arm lockout notification", "error", err)
		}
	}

	pair, err := h.JW.IssuePair(user.ID)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	h.audit(r, email, true, reasonOK)
	logInfo(r, "user logged in", "user_id", user.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(pair)
}

// notifyLockout sends the lockout reset email at most once per lockout
// episode. The one-shot flag flip happens in a single UPDATE, so concurrent
// locked-out requests race safely: only the request whose statement flipped
// the flag sends.
func (h *AuthHandler) notifyLockout(r *http.Request, email string) {
	user, err := h.PS.GetUserByEmail(r.Context(), email)
	if err != nil {
		// Unknown identities can be locked out too (tracker keys on the
		// submitted email); there is just nobody to notify.
		if !errors.Is(err, store.ErrUserNotFound) {
			logWarn(r, "lockout notification lookup failed", "error", err)
		}
		return
	}

	flipped, err := h.PS.MarkLockoutNotified(r.Context(), user.ID)
	if err != nil {
		logWarn(r, "failed to mark lockout notified", "error", err)
		return
	}
	if !flipped {
		return
	}

	token := h.TK.Issue(user, PurposeReset)
	link := h.resetPasswordLink(EncodeUID(user.ID), token)
	if err := h.ML.SendLockout(r.Context(), user.Email, link); err != nil {
		logError(r, "failed to send lockout email", "error", err)
	}
	logInfo(r, "lockout email sent", "user_id", user.ID)
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Refresh handles POST /api/token/refresh/. Exchanges a valid refresh token
// for a fresh access + refresh pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
		Detail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := h.JW.VerifyRefresh(req.Refresh)
	if err != nil {
		Detail(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}

	// Deleted accounts must not keep refreshing.
	if _, err := h.PS.GetUserByID(r.Context(), userID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			Detail(w, http.StatusUnauthorized, "Token is invalid or expired")
			return
		}
		InternalServerError(w, r, err)
		return
	}

	pair, err := h.JW.IssuePair(userID)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(pair)
}
