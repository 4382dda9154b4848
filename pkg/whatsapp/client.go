// Package whatsapp provides a client for sending WhatsApp messages
// through the Twilio Messages API.
package whatsapp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bidcloud/notification-engine/pkg/retrier"
)

const apiBase = "https://api.twilio.com/2010-04-01"

// Client represents a Twilio-backed WhatsApp sender.
type Client struct {
	accountSID string
	authToken  string
	from       string // sender phone in E.164 format
	client     *http.Client
}

// NewClient creates a WhatsApp client for the given Twilio account.
func NewClient(accountSID, authToken, from string) *Client {
	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		client:     &http.Client{},
	}
}

// Send delivers a plain-text WhatsApp message to the given phone number.
// A missing or malformed destination fails fast without retries; provider
// rejections in the 4xx range are treated the same way, while 429 and 5xx
// responses are left retriable.
func (c *Client) Send(ctx context.Context, toPhone, text string) error {
	if toPhone == "" || !strings.HasPrefix(toPhone, "+") {
		return retrier.Fatal(fmt.Errorf("whatsapp: invalid destination phone %q", toPhone))
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", apiBase, c.accountSID)
	form := url.Values{
		"From": {"whatsapp:" + c.from},
		"To":   {"whatsapp:" + toPhone},
		"Body": {text},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	apiErr := fmt.Errorf("twilio API error: %s: %s", resp.Status, strings.TrimSpace(string(body)))

	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return retrier.Fatal(apiErr)
	}

	return apiErr
}
