// Package notification provides the delivery backends for verification codes:
// SMTP email, an HTTP SMS gateway, and a log-only mock for development.
package notification

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"
)

// EmailNotifier delivers verification codes over SMTP.
type EmailNotifier struct {
	dialer *gomail.Dialer
	from   string
}

// NewEmailNotifier returns an SMTP-backed notifier sending from the given address.
func NewEmailNotifier(host string, port int, username, password, from string) *EmailNotifier {
	return &EmailNotifier{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send emails the code to destination. The SMTP dial honors no context
// deadline; callers relying on timeouts should set them on the dialer side.
func (n *EmailNotifier) Send(_ context.Context, destination, code string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", destination)
	m.SetHeader("Subject", "Your verification code")
	m.SetBody("text/plain", fmt.Sprintf("Your verification code is %s. It expires in a few minutes; if you did not request it, ignore this message.", code))

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}
