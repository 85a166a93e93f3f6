// reset_handler_test.go -- unit tests for SendResetMail, ResetPassword, and ChangePassword.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hestia-auth/hestia/internal/testutil"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
)

func TestSendResetMail(t *testing.T) {
	sendReq := func(body string) *http.Request {
		return httptest.NewRequest(http.MethodPost, "/api/reset-password/send/", strings.NewReader(body))
	}

	t.Run("invalid JSON returns no valid email", func(t *testing.T) {
		h, _, _ := newTestHandler(testutil.NewMockStore())

		w := httptest.NewRecorder()
		h.SendResetMail(w, sendReq(`{not json}`))

		assertDetail(t, w, http.StatusBadRequest, "No valid email")
	})

	t.Run("malformed email returns no valid email", func(t *testing.T) {
		h, _, _ := newTestHandler(testutil.NewMockStore())

		w := httptest.NewRecorder()
		h.SendResetMail(w, sendReq(`{"email":"notanemail"}`))

		assertDetail(t, w, http.StatusBadRequest, "No valid email")
	})

	t.Run("active account gets reset email", func(t *testing.T) {
		user := newTestUser(t, "reset@example.com", "password123")
		h, _, ml := newTestHandler(testutil.NewMockStore(user))

		w := httptest.NewRecorder()
		h.SendResetMail(w, sendReq(`{"email":"reset@example.com"}`))

		assertDetail(t, w, http.StatusOK, "Send e-mail succesful")
		kinds := ml.SentKinds()
		if len(kinds) != 1 || kinds[0] != "reset_request" {
			t.Fatalf("expected one reset email, got %v", kinds)
		}
		if !strings.Contains(ml.Sent[0].Link, "/forget-password-reset/") {
			t.Errorf("reset link: got %q", ml.Sent[0].Link)
		}
	})

	t.Run("unknown email gets the same success response and no mail", func(t *testing.T) {
		h, _, ml := newTestHandler(testutil.NewMockStore())

		w := httptest.NewRecorder()
		h.SendResetMail(w, sendReq(`{"email":"nobody@example.com"}`))

		assertDetail(t, w, http.StatusOK, "Send e-mail succesful")
		if len(ml.Sent) != 0 {
			t.Errorf("expected no email for unknown address, got %v", ml.SentKinds())
		}
	})

	t.Run("unconfirmed account gets a fresh activation email", func(t *testing.T) {
		user := newTestUser(t, "pending@example.com", "password123")
		user.IsActive = false
		h, _, ml := newTestHandler(testutil.NewMockStore(user))

		w := httptest.NewRecorder()
		h.SendResetMail(w, sendReq(`{"email":"pending@example.com"}`))

		assertDetail(t, w, http.StatusOK, "Account is not yet confirmed - confirmation email sent again")
		kinds := ml.SentKinds()
		if len(kinds) != 1 || kinds[0] != "confirmation" {
			t.Fatalf("expected one confirmation email, got %v", kinds)
		}
	})

	t.Run("repeated requests stay idempotent", func(t *testing.T) {
		user := newTestUser(t, "reset@example.com", "password123")
		h, _, ml := newTestHandler(testutil.NewMockStore(user))

		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			h.SendResetMail(w, sendReq(`{"email":"reset@example.com"}`))
			assertDetail(t, w, http.StatusOK, "Send e-mail succesful")
		}
		if len(ml.Sent) != 3 {
			t.Errorf("expected one email per request, got %d", len(ml.Sent))
		}
	})
}

// resetReq builds a POST reset request with uid/token URL params set.
func resetReq(uid, token, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/reset-password/"+uid+"/"+token+"/", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("uid", uid)
	rctx.URLParams.Add("token", token)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestResetPassword(t *testing.T) {
	matching := `{"password":"newsecurepass1","password_confirm":"newsecurepass1"}`

	t.Run("valid link sets the new password", func(t *testing.T) {
		user := newTestUser(t, "reset@example.com", "oldpassword1")
		h, _, ml := newTestHandler(testutil.NewMockStore(user))

		token := h.TK.Issue(user, PurposeReset)
		w := httptest.NewRecorder()
		h.ResetPassword(w, resetReq(EncodeUID(user.ID), token, matching))

		assertDetail(t, w, http.StatusOK, "Password reset successful")

		ok, err := VerifyPassword("newsecurepass1", user.PasswordHash)
		if err != nil || !ok {
			t.Error("expected the new password to verify against the stored hash")
		}
		kinds := ml.SentKinds()
		if len(kinds) != 1 || kinds[0] != "change_confirmation" {
			t.Errorf("expected one change notification, got %v", kinds)
		}
	})

	t.Run("completing a reset consumes the link", func(t *testing.T) {
		user := newTestUser(t, "reset@example.com", "oldpassword1")
		h, _, _ := newTestHandler(testutil.NewMockStore(user))

		token := h.TK.Issue(user, PurposeReset)
		w := httptest.NewRecorder()
		h.ResetPassword(w, resetReq(EncodeUID(user.ID), token, matching))
		if w.Code != http.StatusOK {
			t.Fatalf("first reset: expected 200, got %d", w.Code)
		}

		// The hash changed, so the same token no longer verifies.
		w = httptest.NewRecorder()
		h.ResetPassword(w, resetReq(EncodeUID(user.ID), token, matching))
		assertDetail(t, w, http.StatusBadRequest, "Invalid or expired token")
	})

	t.Run("reset ends a lockout episode", func(t *testing.T) {
		user := newTestUser(t, "locked@example.com", "oldpassword1")
		user.LockoutEmailSent = true
		h, at, _ := newTestHandler(testutil.NewMockStore(user))

		// Drive the identity into lockout.
		for i := 0; i < 5; i++ {
			lw := httptest.NewRecorder()
			h.Login(lw, loginReq("locked@example.com", "wrongpassword", ""))
		}

		token := h.TK.Issue(user, PurposeReset)
		w := httptest.NewRecorder()
		h.ResetPassword(w, resetReq(EncodeUID(user.ID), token, matching))

		assertDetail(t, w, http.StatusOK, "Password reset successful")
		if locked, _ := at.IsLocked(context.Background(), "locked@example.com", ""); locked {
			t.Error("expected identity lock cleared by a completed reset")
		}
		if user.LockoutEmailSent {
			t.Error("expected lockout notification flag re-armed")
		}
	})

	t.Run("malformed uid returns invalid link", func(t *testing.T) {
		h, _, _ := newTestHandler(testutil.NewMockStore())

		w := httptest.NewRecorder()
		h.ResetPassword(w, resetReq("!!!notbase64!!!", "sometoken", matching))

		assertDetail(t, w, http.StatusBadRequest, "Invalid link")
	})

	t.Run("unknown user returns invalid link", func(t *testing.T) {
		h, _, _ := newTestHandler(testutil.NewMockStore())

		w := httptest.NewRecorder()
		h.ResetPassword(w, resetReq(EncodeUID(uuid.Must(uuid.NewV7())), "sometoken", matching))

		assertDetail(t, w, http.StatusBadRequest, "Invalid link")
	})

	t.Run("activation token rejected for reset", func(t *testing.T) {
		user := newTestUser(t, "reset@example.com", "oldpassword1")
		h, _, _ := newTestHandler(testutil.NewMockStore(user))

		token := h.TK.Issue(user, PurposeActivation)
		w := httptest.NewRecorder()
		h.ResetPassword(w, resetReq(EncodeUID(user.ID), token, matching))

		assertDetail(t, w, http.StatusBadRequest, "Invalid or expired token")
	})

	t.Run("password mismatch rejected", func(t *testing.T) {
		user := newTestUser(t, "reset@example.com", "oldpassword1")
		h, _, _ := newTestHandler(testutil.NewMockStore(user))

		token := h.TK.Issue(user, PurposeReset)
		body := `{"password":"newsecurepass1","password_confirm":"different"}`
		w := httptest.NewRecorder()
		h.ResetPassword(w, resetReq(EncodeUID(user.ID), token, body))

		assertDetail(t, w, http.StatusBadRequest, "Passwords do not match.")
	})

	t.Run("weak password rejected", func(t *testing.T) {
		user := newTestUser(t, "reset@example.com", "oldpassword1")
		h, _, _ := newTestHandler(testutil.NewMockStore(user))

		token := h.TK.Issue(user, PurposeReset)
		body := `{"password":"1234","password_confirm":"1234"}`
		w := httptest.NewRecorder()
		h.ResetPassword(w, resetReq(EncodeUID(user.ID), token, body))

		assertFieldError(t, w, "password", "This password is too short. It must contain at least 8 characters.")
	})

	t.Run("store failure returns InternalServerError", func(t *testing.T) {
		user := newTestUser(t, "reset@example.com", "oldpassword1")
		ps := testutil.NewMockStore(user)
		ps.UpdatePasswordErr = errors.New("database write failed")
		h, _, _ := newTestHandler(ps)

		token := h.TK.Issue(user, PurposeReset)
		w := httptest.NewRecorder()
		h.ResetPassword(w, resetReq(EncodeUID(user.ID), token, matching))

		assertInternalServerError(t, w)
	})
}

// changeReq builds an authenticated POST /api/reset-password/logged-in/ request.
func changeReq(userID uuid.UUID, oldPwd, newPwd, newPwdConfirm string) *http.Request {
	body := strings.NewReader(fmt.Sprintf(
		`{"password_old":%q,"password_new":%q,"password_new_confirm":%q}`, oldPwd, newPwd, newPwdConfirm,
	))
	r := httptest.NewRequest(http.MethodPost, "/api/reset-password/logged-in/", body)
	ctx := context.WithValue(r.Context(), userIDKey, userID)
	return r.WithContext(ctx)
}

func TestChangePassword(t *testing.T) {
	t.Run("valid change updates the hash and notifies", func(t *testing.T) {
		user := newTestUser(t, "change@example.com", "oldpassword1")
		h, _, ml := newTestHandler(testutil.NewMockStore(user))

		w := httptest.NewRecorder()
		h.ChangePassword(w, changeReq(user.ID, "oldpassword1", "newsecurepass1", "newsecurepass1"))

		assertDetail(t, w, http.StatusOK, "Password changed successfully")
		if ok, _ := VerifyPassword("newsecurepass1", user.PasswordHash); !ok {
			t.Error("expected the new password to verify")
		}
		kinds := ml.SentKinds()
		if len(kinds) != 1 || kinds[0] != "change_confirmation" {
			t.Errorf("expected one change notification, got %v", kinds)
		}
	})

	t.Run("wrong old password rejected", func(t *testing.T) {
		user := newTestUser(t, "change@example.com", "oldpassword1")
		h, _, _ := newTestHandler(testutil.NewMockStore(user))

		w := httptest.NewRecorder()
		h.ChangePassword(w, changeReq(user.ID, "wrongpassword", "newsecurepass1", "newsecurepass1"))

		assertDetail(t, w, http.StatusBadRequest, "Old password is incorrect")
	})

	t.Run("mismatched new passwords rejected", func(t *testing.T) {
		user := newTestUser(t, "change@example.com", "oldpassword1")
		h, _, _ := newTestHandler(testutil.NewMockStore(user))

		w := httptest.NewRecorder()
		h.ChangePassword(w, changeReq(user.ID, "oldpassword1", "newsecurepass1", "different"))

		assertDetail(t, w, http.StatusBadRequest, "Passwords do not match.")
	})

	t.Run("weak new password rejected", func(t *testing.T) {
		user := newTestUser(t, "change@example.com", "oldpassword1")
		h, _, _ := newTestHandler(testutil.NewMockStore(user))

		w := httptest.NewRecorder()
		h.ChangePassword(w, changeReq(user.ID, "oldpassword1", "1234", "1234"))

		assertFieldError(t, w, "password", "This password is entirely numeric.")
	})

	t.Run("missing context returns Unauthorized", func(t *testing.T) {
		h, _, _ := newTestHandler(testutil.NewMockStore())

		r := httptest.NewRequest(http.MethodPost, "/api/reset-password/logged-in/", strings.NewReader(`{}`))
		w := httptest.NewRecorder()

		h.ChangePassword(w, r)

		assertDetail(t, w, http.StatusUnauthorized, "Authentication credentials were not provided.")
	})
}
