// smtp.go
//
// Mailer interface and SMTPMailer implementation.
// Add other implementations (ses.go, etc.) as separate files in this package.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
)

// Mailer sends transactional emails. One method per notification kind; each
// kind has a fixed subject. The mailer is stateless and idempotence-unaware:
// exactly-once guarantees are the caller's job (the one-shot lockout flag).
type Mailer interface {
	// SendConfirmation emails the account-activation link after registration
	// (and again when a reset is requested for an unconfirmed account).
	SendConfirmation(ctx context.Context, toEmail, link string) error

	// SendLockout emails the brute-force lockout notice with a reset link.
	SendLockout(ctx context.Context, toEmail, link string) error

	// SendResetRequest emails the forgotten-password reset link.
	SendResetRequest(ctx context.Context, toEmail, link string) error

	// SendChangeConfirmation notifies the user that their password changed.
	SendChangeConfirmation(ctx context.Context, toEmail string) error
}

// Fixed subject lines, one per notification kind.
const (
	SubjectConfirmation       = "Confirm your email address"
	SubjectLockout            = "Too many login attempts - Reset your password"
	SubjectResetRequest       = "You have forgotten your password - Reset your password"
	SubjectChangeConfirmation = "Your password has been changed"
)

// SMTPConfig holds all configuration for SMTPMailer.
type SMTPConfig struct {
	Host        string
	Port        string
	Username    string
	Password    string
	FromAddress string
}

// SMTPMailer sends transactional email via SMTP.
// Compatible with any SMTP provider: SES, Mailgun, Mailpit (local dev), etc.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer creates an SMTPMailer with the given config.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// NopMailer discards all outbound email. Used when SMTP is not configured.
type NopMailer struct{}

func (n *NopMailer) SendConfirmation(_ context.Context, _, _ string) error { return nil }

func (n *NopMailer) SendLockout(_ context.Context, _, _ string) error { return nil }

func (n *NopMailer) SendResetRequest(_ context.Context, _, _ string) error { return nil }

func (n *NopMailer) SendChangeConfirmation(_ context.Context, _ string) error { return nil }

// composeMessage renders a full RFC 5322 message with headers.
func composeMessage(from, to, subject, body string) string {
	return "From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		body
}

// sendMail dials the SMTP server, enforces STARTTLS (rejects plaintext
// sessions), authenticates, and delivers msg. The dial respects ctx cancellation.
func (m *SMTPMailer) sendMail(ctx context.Context, toEmail, msg string) error {
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", m.cfg.Host+":"+m.cfg.Port)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	// Enforce STARTTLS -- reject the session if the server does not advertise it.
	if ok, _ := c.Extension("STARTTLS"); !ok {
		return fmt.Errorf("smtp server does not advertise STARTTLS: refusing plaintext session")
	}
	if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
		return fmt.Errorf("smtp starttls: %w", err)
	}

	if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	if err := c.Mail(m.cfg.FromAddress); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := c.Rcpt(toEmail); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := fmt.Fprint(wc, msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}

	return c.Quit()
}

// SendConfirmation emails the activation link to toEmail.
func (m *SMTPMailer) SendConfirmation(ctx context.Context, toEmail, link string) error {
	body := fmt.Sprintf("Hi %s,\n\nClick the link below to activate your account:\n%s\n", toEmail, link)
	msg := composeMessage(m.cfg.FromAddress, toEmail, SubjectConfirmation, body)
	if err := m.sendMail(ctx, toEmail, msg); err != nil {
		return fmt.Errorf("sending confirmation email: %w", err)
	}
	return nil
}

// SendLockout emails the lockout notice with a password reset link.
func (m *SMTPMailer) SendLockout(ctx context.Context, toEmail, link string) error {
	body := fmt.Sprintf("Hi %s,\n\n"+
		"Your account was locked after too many failed login attempts.\n"+
		"It will unlock automatically, or you can reset your password now:\n%s\n\n"+
		"If this wasn't you, we recommend resetting your password.\n", toEmail, link)
	msg := composeMessage(m.cfg.FromAddress, toEmail, SubjectLockout, body)
	if err := m.sendMail(ctx, toEmail, msg); err != nil {
		return fmt.Errorf("sending lockout email: %w", err)
	}
	return nil
}

// SendResetRequest emails the password reset link to toEmail.
func (m *SMTPMailer) SendResetRequest(ctx context.Context, toEmail, link string) error {
	body := fmt.Sprintf("Hi %s,\n\nClick the link below to choose a new password:\n%s\n\n"+
		"If you did not request a reset, ignore this email.\n", toEmail, link)
	msg := composeMessage(m.cfg.FromAddress, toEmail, SubjectResetRequest, body)
	if err := m.sendMail(ctx, toEmail, msg); err != nil {
		return fmt.Errorf("sending reset request email: %w", err)
	}
	return nil
}

// SendChangeConfirmation notifies toEmail that the account password changed.
func (m *SMTPMailer) SendChangeConfirmation(ctx context.Context, toEmail string) error {
	body := fmt.Sprintf("Hi %s,\n\nYour password was just changed.\n"+
		"If this wasn't you, request a password reset immediately.\n", toEmail)
	msg := composeMessage(m.cfg.FromAddress, toEmail, SubjectChangeConfirmation, body)
	if err := m.sendMail(ctx, toEmail, msg); err != nil {
		return fmt.Errorf("sending change confirmation email: %w", err)
	}
	return nil
}
