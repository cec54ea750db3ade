// Package email delivers the transactional mail of the service: account
// activation and password reset. Delivery is always best-effort from the
// caller's point of view; a failed send never aborts the flow that
// triggered it.
package email

import (
	"fmt"
	"log/slog"
	"net/url"

	"gopkg.in/gomail.v2"
)

// Sender delivers a single HTML message.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender creates a sender for the given relay. user and password may
// be empty for an unauthenticated relay.
func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("email: sending to %s: %w", to, err)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them. Used in
// development, where the logged activation link substitutes for an inbox.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(to, subject, htmlBody string) error {
	s.logger.Info("outbound email (not delivered)",
		"to", to, "subject", subject, "body", htmlBody)
	return nil
}

// Mailer renders and sends the service's messages. The links point at the
// frontend, which extracts the token from its route and calls the API.
type Mailer struct {
	sender      Sender
	frontendURL string
}

// NewMailer creates a Mailer. frontendURL is the base of the user-facing
// app, without a trailing slash.
func NewMailer(sender Sender, frontendURL string) *Mailer {
	return &Mailer{sender: sender, frontendURL: frontendURL}
}

// SendActivation sends the account-activation message.
func (m *Mailer) SendActivation(to, token string) error {
	link := fmt.Sprintf("%s/auth/activate/%s/%s",
		m.frontendURL, url.PathEscape(to), url.PathEscape(token))
	body := fmt.Sprintf(`<html><body>
<h2>Welcome!</h2>
<p>Thanks for signing up. Click the link below to activate your account.
The link is valid for 24 hours.</p>
<p><a href="%s">Activate my account</a></p>
<p>If you did not create this account, you can ignore this message.</p>
</body></html>`, link)
	return m.sender.Send(to, "Activate your account", body)
}

// SendPasswordReset sends the password-reset message.
func (m *Mailer) SendPasswordReset(to, token string) error {
	link := fmt.Sprintf("%s/auth/reset-password/%s/%s",
		m.frontendURL, url.PathEscape(to), url.PathEscape(token))
	body := fmt.Sprintf(`<html><body>
<h2>Password reset</h2>
<p>We received a request to reset the password for this address. Click the
link below to choose a new one. The link is valid for 24 hours.</p>
<p><a href="%s">Reset my password</a></p>
<p>If you did not request this, your password is unchanged and you can
ignore this message.</p>
</body></html>`, link)
	return m.sender.Send(to, "Reset your password", body)
}
