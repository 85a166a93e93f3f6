// register_handler.go -- Registration and email confirmation endpoints.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/registration/. Creates an inactive account and
// emails an activation link.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Detail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := normalizeEmail(req.Email)

	fieldErrs := map[string][]string{}
	if msg := ValidateEmail(email); msg != "" {
		fieldErrs["email"] = append(fieldErrs["email"], msg)
	}
	if msgs := h.Policy.Validate(req.Password); len(msgs) > 0 {
		fieldErrs["password"] = append(fieldErrs["password"], msgs...)
	}
	if len(fieldErrs) > 0 {
		FieldErrors(w, fieldErrs)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	if err := h.PS.CreateUser(r.Context(), id, email, hash); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			FieldErrors(w, map[string][]string{"email": {"This email already exists."}})
			return
		}
		InternalServerError(w, r, err)
		return
	}

	h.sendConfirmation(r, id, email)

	logInfo(r, "user registered", "user_id", id)
	Message(w, http.StatusCreated, "User created. Please check your email.")
}

// sendConfirmation emails the activation link. A send failure never fails
// the surrounding request; the user can trigger a resend via the reset flow.
func (h *AuthHandler) sendConfirmation(r *http.Request, id uuid.UUID, email string) {
	user, err := h.PS.GetUserByEmail(r.Context(), email)
	if err != nil {
		logError(r, "failed to load user for confirmation email", "error", err)
		return
	}
	token := h.TK.Issue(user, PurposeActivation)
	link := h.confirmEmailLink(EncodeUID(id), token)
	if err := h.ML.SendConfirmation(r.Context(), email, link); err != nil {
		logError(r, "failed to send confirmation email", "error", err)
	}
}

// ConfirmEmail handles GET /api/registration/confirm-email/{uid}/{token}/.
// Activates the account the emailed link points at. Idempotent: a second
// visit reports the account as already confirmed.
func (h *AuthHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	token := chi.URLParam(r, "token")

	id, err := DecodeUID(uid)
	if err != nil {
		ErrorMessage(w, http.StatusBadRequest, "Invalid user ID.")
		return
	}
	user, err := h.PS.GetUserByID(r.Context(), id)
	if err != nil {
		ErrorMessage(w, http.StatusBadRequest, "Invalid user ID.")
		return
	}

	if user.IsActive {
		Message(w, http.StatusOK, "Email already confirmed.")
		return
	}

	if !h.TK.Verify(user, PurposeActivation, token) {
		ErrorMessage(w, http.StatusBadRequest, "Invalid or expired token.")
		return
	}

	if err := h.PS.ActivateUser(r.Context(), user.ID); err != nil {
		InternalServerError(w, r, err)
		return
	}

	logInfo(r, "email confirmed", "user_id", user.ID)
	Message(w, http.StatusOK, "Email successfully confirmed.")
}

// Hello handles GET /api/test/, an authenticated smoke endpoint greeting the
// caller by the capitalized local part of their email address.
func (h *AuthHandler) Hello(w http.ResponseWriter, r *http.Request) {
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

	local, _, _ := strings.Cut(user.Email, "@")
	if local != "" {
		local = strings.ToUpper(local[:1]) + local[1:]
	}

	Message(w, http.StatusOK, "Hello, "+local+"!")
}
