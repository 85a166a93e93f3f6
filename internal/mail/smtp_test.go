// smtp_test.go
//
// Unit tests for pure mail helpers. SMTP delivery itself is exercised
// manually against a local Mailpit; there is no fake SMTP server here.
package mail

import (
	"context"
	"strings"
	"testing"
)

func TestComposeMessage(t *testing.T) {
	msg := composeMessage("noreply@example.com", "user@example.com", "Test subject", "Body line.\n")

	t.Run("carries all headers", func(t *testing.T) {
		for _, want := range []string{
			"From: noreply@example.com\r\n",
			"To: user@example.com\r\n",
			"Subject: Test subject\r\n",
			"Content-Type: text/plain; charset=UTF-8\r\n",
		} {
			if !strings.Contains(msg, want) {
				t.Errorf("message missing %q", want)
			}
		}
	})

	t.Run("separates headers from body with blank line", func(t *testing.T) {
		if !strings.Contains(msg, "\r\n\r\nBody line.\n") {
			t.Errorf("expected CRLF CRLF before body, got %q", msg)
		}
	})
}

func TestSubjects(t *testing.T) {
	// Fixed subject lines are part of the front-end contract.
	want := map[string]string{
		"confirmation":        "Confirm your email address",
		"lockout":             "Too many login attempts - Reset your password",
		"reset request":       "You have forgotten your password - Reset your password",
		"change confirmation": "Your password has been changed",
	}
	got := map[string]string{
		"confirmation":        SubjectConfirmation,
		"lockout":             SubjectLockout,
		"reset request":       SubjectResetRequest,
		"change confirmation": SubjectChangeConfirmation,
	}
	for name, subject := range want {
		if got[name] != subject {
			t.Errorf("%s subject: got %q, want %q", name, got[name], subject)
		}
	}
}

func TestNopMailer(t *testing.T) {
	// NopMailer must discard everything without error.
	n := &NopMailer{}
	ctx := context.Background()
	if err := n.SendConfirmation(ctx, "a@b.co", "link"); err != nil {
		t.Errorf("SendConfirmation: %v", err)
	}
	if err := n.SendLockout(ctx, "a@b.co", "link"); err != nil {
		t.Errorf("SendLockout: %v", err)
	}
	if err := n.SendResetRequest(ctx, "a@b.co", "link"); err != nil {
		t.Errorf("SendResetRequest: %v", err)
	}
	if err := n.SendChangeConfirmation(ctx, "a@b.co"); err != nil {
		t.Errorf("SendChangeConfirmation: %v", err)
	}
}
