// Package email provides an SMTP sender for notification emails with an
// HTML body and a plain-text alternative.
package email

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/mail.v2"

	"github.com/bidcloud/notification-engine/pkg/retrier"
)

// Client sends notification emails over SMTP.
type Client struct {
	smtpHost string
	smtpPort int
	username string
	password string
	from     string
	timeout  time.Duration
}

// NewClient creates an SMTP client. timeout bounds the dial and send of a
// single attempt so one slow provider cannot stall the delivery pipeline.
func NewClient(smtpHost string, smtpPort int, username, password, from string, timeout time.Duration) *Client {
	return &Client{
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		username: username,
		password: password,
		from:     from,
		timeout:  timeout,
	}
}

// Send delivers one email. A missing destination address is a fatal
// failure: retrying cannot fix it.
func (c *Client) Send(ctx context.Context, to, subject, html, text string) error {
	if to == "" {
		return retrier.Fatal(fmt.Errorf("email: empty destination address"))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	message := mail.NewMessage()
	message.SetHeader("From", c.from)
	message.SetHeader("To", to)
	message.SetHeader("Subject", subject)
	message.SetBody("text/plain", text)
	if html != "" {
		message.AddAlternative("text/html", html)
	}

	dialer := mail.NewDialer(c.smtpHost, c.smtpPort, c.username, c.password)
	if c.timeout > 0 {
		dialer.Timeout = c.timeout
	}

	if err := dialer.DialAndSend(message); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}

	return nil
}
