// Package render builds channel-specific notification content from a
// notification type and its payload. Rendering is pure: identical inputs
// produce identical output, and every type falls back to a generic
// title/message template rather than failing.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/bidcloud/notification-engine/internal/model"
)

// whatsAppMaxLen is the provider limit for a single message body.
const whatsAppMaxLen = 1600

// Email is a rendered email message.
type Email struct {
	Subject string
	HTML    string
	Text    string
}

// Renderer produces channel-specific message content. The application
// base URL and branding line are injected, not hard-coded.
type Renderer struct {
	appURL string
	brand  string
}

// New creates a Renderer. appURL must not have a trailing slash.
func New(appURL, brand string) *Renderer {
	return &Renderer{appURL: strings.TrimRight(appURL, "/"), brand: brand}
}

// RenderEmail builds the email for the given notification.
func (r *Renderer) RenderEmail(t model.Type, title, message string, p model.Payload) Email {
	switch {
	case t == model.TypeNewContractMatch && p.Contract != nil:
		return r.contractMatchEmail(p.Contract)
	case t == model.TypeDeadlineReminder && p.Contract != nil:
		return r.deadlineReminderEmail(p.Contract, p.DaysRemaining)
	case t == model.TypeDailyDigest:
		return r.dailyDigestEmail(p.Opportunities)
	default:
		return Email{
			Subject: title,
			HTML:    fmt.Sprintf("<h1>%s</h1><p>%s</p>", title, message),
			Text:    fmt.Sprintf("%s\n\n%s", title, message),
		}
	}
}

// RenderWhatsApp builds the plain-text WhatsApp message for the given
// notification. The result never exceeds the provider's 1600-char limit.
func (r *Renderer) RenderWhatsApp(t model.Type, title, message string, p model.Payload) string {
	var body string
	switch {
	case t == model.TypeNewContractMatch && p.Contract != nil:
		body = r.contractMatchWhatsApp(p.Contract)
	case t == model.TypeDeadlineReminder && p.Contract != nil:
		body = r.deadlineReminderWhatsApp(p.Contract, p.TimeRemaining)
	case t == model.TypeDailyDigest:
		body = r.dailyDigestWhatsApp(p.Opportunities)
	default:
		body = fmt.Sprintf("📢 *%s*\n\n%s\n\nView dashboard: %s/dashboard%s", title, message, r.appURL, r.footer())
	}
	return truncate(body, whatsAppMaxLen)
}

func (r *Renderer) contractMatchEmail(c *model.ContractSnapshot) Email {
	subject := fmt.Sprintf("New Contract Match: %s", c.Title)
	link := fmt.Sprintf("%s/dashboard/contracts/%s", r.appURL, c.ID)
	deadline := formatDeadline(c.SubmissionDeadline)

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1>🎯 New Contract Match!</h1>
  <p>A contract matching your preferences has been published.</p>
  <h2>%s</h2>
  <table>
    <tr><td><b>Agency:</b></td><td>%s</td></tr>
    <tr><td><b>Category:</b></td><td>%s</td></tr>
    <tr><td><b>Deadline:</b></td><td>%s</td></tr>
    <tr><td><b>Estimated Value:</b></td><td>%s</td></tr>
  </table>
  <p><a href="%s">View Full Contract Details</a></p>
  <p style="font-size: 14px;">This notification was sent because you have enabled new contract notifications.
  <a href="%s/dashboard/notifications/settings">Manage your notification preferences</a></p>
</body>
</html>`,
		c.Title, c.ProcuringEntity, c.Category, deadline,
		FormatValueRange(c.EstimatedValueMin, c.EstimatedValueMax), link, r.appURL)

	text := fmt.Sprintf(`New Contract Match: %s

A new contract matching your preferences has been published:

- Title: %s
- Agency: %s
- Category: %s
- Deadline: %s
- Estimated Value: %s

View the full contract details: %s
`, c.Title, c.Title, c.ProcuringEntity, c.Category, deadline,
		FormatValueRange(c.EstimatedValueMin, c.EstimatedValueMax), link)

	return Email{Subject: subject, HTML: html, Text: text}
}

func (r *Renderer) deadlineReminderEmail(c *model.ContractSnapshot, daysRemaining int) Email {
	subject := fmt.Sprintf("Deadline Reminder: %s - %d Days Left", c.Title, daysRemaining)
	link := fmt.Sprintf("%s/dashboard/contracts/%s", r.appURL, c.ID)
	deadline := formatDeadline(c.SubmissionDeadline)

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1>⏰ Deadline Reminder</h1>
  <h2>%s</h2>
  <p><b>⚠️ Urgent: %d Days Remaining</b></p>
  <p>Don't miss this opportunity! The submission deadline is approaching.</p>
  <table>
    <tr><td><b>Agency:</b></td><td>%s</td></tr>
    <tr><td><b>Category:</b></td><td>%s</td></tr>
    <tr><td><b>Deadline:</b></td><td><b>%s</b></td></tr>
  </table>
  <p><a href="%s">View Contract Details</a></p>
  <p style="font-size: 14px;">This reminder was sent because you're tracking this contract and have enabled deadline reminders.
  <a href="%s/dashboard/notifications/settings">Manage your notification preferences</a></p>
</body>
</html>`,
		c.Title, daysRemaining, c.ProcuringEntity, c.Category, deadline, link, r.appURL)

	text := fmt.Sprintf(`Deadline Reminder: %s - %d Days Left

The contract you're tracking is due soon:

- Title: %s
- Agency: %s
- Category: %s
- Deadline: %s

View the contract and submit your bid: %s
`, c.Title, daysRemaining, c.Title, c.ProcuringEntity, c.Category, deadline, link)

	return Email{Subject: subject, HTML: html, Text: text}
}

func (r *Renderer) dailyDigestEmail(opportunities []model.Opportunity) Email {
	subject := fmt.Sprintf("%d New Bid Opportunities for You Today!", len(opportunities))

	var htmlItems, textItems strings.Builder
	for i, o := range opportunities {
		htmlItems.WriteString(fmt.Sprintf(
			`<li><a href="%s/dashboard/contracts/%s">%s</a> — %s (match score %d/5, %d days remaining)</li>`,
			r.appURL, o.ID, o.Title, o.ProcuringEntity, o.MatchScore, o.DaysRemaining))
		textItems.WriteString(fmt.Sprintf("%d. %s — %s (match score %d/5, %d days remaining)\n",
			i+1, o.Title, o.ProcuringEntity, o.MatchScore, o.DaysRemaining))
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1>📊 Daily Contract Digest</h1>
  <p>Found %d new bid opportunities matching your preferences:</p>
  <ul>%s</ul>
  <p><a href="%s/dashboard">View all contracts</a></p>
</body>
</html>`, len(opportunities), htmlItems.String(), r.appURL)

	text := fmt.Sprintf(`Daily Contract Digest

Found %d new bid opportunities matching your preferences:

%s
View all contracts: %s/dashboard
`, len(opportunities), textItems.String(), r.appURL)

	return Email{Subject: subject, HTML: html, Text: text}
}

func (r *Renderer) contractMatchWhatsApp(c *model.ContractSnapshot) string {
	return fmt.Sprintf(`🎯 *New Contract Match!*

*%s*
📋 Ref: %s
🏢 Client: %s
📅 Deadline: %s
💰 Value: %s

⚡ *This contract matches your preferences!*

View details: %s/dashboard/contracts/%s%s`,
		c.Title, c.ReferenceNumber, c.ProcuringEntity, formatDeadline(c.SubmissionDeadline),
		FormatValueRange(c.EstimatedValueMin, c.EstimatedValueMax), r.appURL, c.ID, r.footer())
}

func (r *Renderer) deadlineReminderWhatsApp(c *model.ContractSnapshot, timeRemaining string) string {
	if timeRemaining == "" {
		timeRemaining = "Unknown"
	}
	return fmt.Sprintf(`🚨 *Deadline Reminder*

*Contract:* %s
*Client:* %s
*Deadline:* %s
*Time Remaining:* %s

⚠️ Don't miss this opportunity!

View details: %s/dashboard%s`,
		c.Title, c.ProcuringEntity, formatDeadline(c.SubmissionDeadline), timeRemaining, r.appURL, r.footer())
}

func (r *Renderer) dailyDigestWhatsApp(opportunities []model.Opportunity) string {
	if len(opportunities) == 0 {
		return fmt.Sprintf(`📊 *Daily Contract Digest*

No new contracts match your preferences today.

Check back tomorrow for new opportunities!%s`, r.footer())
	}

	var b strings.Builder
	b.WriteString("📊 *Daily Contract Digest*\n\n")
	plural := ""
	if len(opportunities) > 1 {
		plural = "s"
	}
	b.WriteString(fmt.Sprintf("Found %d new contract%s matching your preferences:\n\n", len(opportunities), plural))

	shown := opportunities
	if len(shown) > 3 {
		shown = shown[:3]
	}
	for i, o := range shown {
		b.WriteString(fmt.Sprintf("%d. *%s*\n   📅 %s\n   🏢 %s\n\n",
			i+1, o.Title, formatDeadline(o.SubmissionDeadline), o.ProcuringEntity))
	}
	if extra := len(opportunities) - len(shown); extra > 0 {
		b.WriteString(fmt.Sprintf("... and %d more opportunities!\n\n", extra))
	}

	b.WriteString(fmt.Sprintf("View all contracts: %s/dashboard", r.appURL))
	b.WriteString(r.footer())
	return b.String()
}

func (r *Renderer) footer() string {
	return fmt.Sprintf("\n\n---\n%s", r.brand)
}

// FormatValueRange renders a contract's estimated value bounds, e.g.
// "UGX 1.5M - 2.0M", "From UGX 800.0K" or "Not specified".
func FormatValueRange(min, max *float64) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("UGX %s - %s", FormatAmount(*min), FormatAmount(*max))
	case min != nil:
		return fmt.Sprintf("From UGX %s", FormatAmount(*min))
	case max != nil:
		return fmt.Sprintf("Up to UGX %s", FormatAmount(*max))
	default:
		return "Not specified"
	}
}

// FormatAmount abbreviates monetary values with K, M and B suffixes.
func FormatAmount(amount float64) string {
	switch {
	case amount >= 1e9:
		return fmt.Sprintf("%.1fB", amount/1e9)
	case amount >= 1e6:
		return fmt.Sprintf("%.1fM", amount/1e6)
	case amount >= 1e3:
		return fmt.Sprintf("%.1fK", amount/1e3)
	default:
		return groupThousands(int64(amount))
	}
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func formatDeadline(t *time.Time) string {
	if t == nil {
		return "Not specified"
	}
	return t.Format("Monday, January 2, 2006 03:04 PM")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
