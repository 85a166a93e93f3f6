// reset_handler.go -- Password reset and password change endpoints.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hestia-auth/hestia/internal/store"
)

type sendResetRequest struct {
	Email string `json:"email"`
}

// SendResetMail handles POST /api/reset-password/send/. Emails a reset link
// to active accounts and a fresh activation link to unconfirmed ones.
func (h *AuthHandler) SendResetMail(w http.ResponseWriter, r *http.Request) {
	var req sendResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Detail(w, http.StatusBadRequest, "No valid email")
		return
	}

	email := normalizeEmail(req.Email)
	if ValidateEmail(email) != "" {
		Detail(w, http.StatusBadRequest, "No valid email")
		return
	}

	user, err := h.PS.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// Same success body as the real-send path so the response text
			// does not confirm the address.
			Detail(w, http.StatusOK, "Send e-mail succesful")
			return
		}
		InternalServerError(w, r, err)
		return
	}

	if !user.IsActive {
		// An unconfirmed account can't reset its password, so re-send the
		// activation mail instead. The distinct response body does reveal
		// that the address holds an unconfirmed account; the front end
		// depends on the message, so it stays until the contract changes.
		token := h.TK.Issue(user, PurposeActivation)
		link := h.confirmEmailLink(EncodeUID(user.ID), token)
		if err := h.ML.SendConfirmation(r.Context(), user.Email, link); err != nil {
			logError(r, "failed to resend confirmation email", "error", err)
		}
		Detail(w, http.StatusOK, "Account is not yet confirmed - confirmation email sent again")
		return
	}

	token := h.TK.Issue(user, PurposeReset)
	link := h.resetPasswordLink(EncodeUID(user.ID), token)
	if err := h.ML.SendResetRequest(r.Context(), user.Email, link); err != nil {
		logError(r, "failed to send reset email", "error", err)
	}

	logInfo(r, "password reset email sent", "user_id", user.ID)
	Detail(w, http.StatusOK, "Send e-mail succesful")
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// ResetPassword handles POST /api/reset-password/{uid}/{token}/. Sets a new
// password via an emailed reset link. Completing the reset changes the
// stored hash, which invalidates the link and every other outstanding reset
// token for the account.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	token := chi.URLParam(r, "token")

	id, err := DecodeUID(uid)
	if err != nil {
		Detail(w, http.StatusBadRequest, "Invalid link")
		return
	}
	user, err := h.PS.GetUserByID(r.Context(), id)
	if err != nil {
		Detail(w, http.StatusBadRequest, "Invalid link")
		return
	}

	if !h.TK.Verify(user, PurposeReset, token) {
		Detail(w, http.StatusBadRequest, "Invalid or expired token")
		return
	}

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Detail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password != req.PasswordConfirm {
		Detail(w, http.StatusBadRequest, "Passwords do not match.")
		return
	}
	if msgs := h.Policy.Validate(req.Password); len(msgs) > 0 {
		FieldErrors(w, map[string][]string{"password": msgs})
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}
	if err := h.PS.UpdateUserPassword(r.Context(), user.ID, hash); err != nil {
		InternalServerError(w, r, err)
		return
	}

	// A completed reset ends the lockout episode: clear the failure counters
	// for this identity and the resetting client's address, and re-arm the
	// one-shot notification.
	if err := h.AT.RecordSuccess(r.Context(), user.Email, clientIP(r)); err != nil {
		logWarn(r, "failed to clear login failures after reset", "error", err)
	}
	if user.LockoutEmailSent {
		if err := h.PS.ClearLockoutNotified(r.Context(), user.ID); err != nil {
			logWarn(r, "failed to re-arm lockout notification", "error", err)
		}
	}

	if err := h.ML.SendChangeConfirmation(r.Context(), user.Email); err != nil {
		logError(r, "failed to send password change notification", "error", err)
	}

	logInfo(r, "password reset completed", "user_id", user.ID)
	Detail(w, http.StatusOK, "Password reset successful")
}

type changePasswordRequest struct {
	OldPassword        string `json:"password_old"`
	NewPassword        string `json:"password_new"`
	NewPasswordConfirm string `json:"password_new_confirm"`
}

// ChangePassword handles POST /api/reset-password/logged-in/. Authenticated
// password change requiring the current password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		Detail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return
	}
	user, err := h.PS.GetUserByID(r.Context(), userID)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Detail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	match, err := VerifyPassword(req.OldPassword, user.PasswordHash)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}
	if !match {
		Detail(w, http.StatusBadRequest, "Old password is incorrect")
		return
	}
	if req.NewPassword != req.NewPasswordConfirm {
		Detail(w, http.StatusBadRequest, "Passwords do not match.")
		return
	}
	if msgs := h.Policy.Validate(req.NewPassword); len(msgs) > 0 {
		FieldErrors(w, map[string][]string{"password": msgs})
		return
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}
	if err := h.PS.UpdateUserPassword(r.Context(), user.ID, hash); err != nil {
		InternalServerError(w, r, err)
		return
	}

	if err := h.ML.SendChangeConfirmation(r.Context(), user.Email); err != nil {
		logError(r, "failed to send password change notification", "error", err)
	}

	logInfo(r, "password changed", "user_id", user.ID)
	Detail(w, http.StatusOK, "Password changed successfully")
}
