// Package mailer sends outbound email. Delivery is best-effort; callers that
// don't care about failures run Send in a goroutine and log the error.
package mailer

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"
)

// Mailer delivers a plain-text email.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTP creates a mailer for the given relay.
func NewSMTP(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send delivers one message.
func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// Discard is a no-op mailer used when SMTP is not configured.
type Discard struct{}

// Send drops the message.
func (Discard) Send(_, _, _ string) error { return nil }
