package model

import (
	"time"

	"github.com/google/uuid"
)

// Preferences holds a user's notification settings: per-type toggles,
// per-channel toggles and an optional quiet-hours window. One record per
// user, created on first write and upserted afterwards, never deleted.
type Preferences struct {
	UserID uuid.UUID `json:"user_id"`

	NewContractMatch  bool `json:"new_contract_notifications"`
	DeadlineReminders bool `json:"deadline_reminders"`
	DailyDigest       bool `json:"daily_digest_enabled"`

	EmailEnabled    bool `json:"email_enabled"`
	WhatsAppEnabled bool `json:"whatsapp_enabled"`
	InAppEnabled    bool `json:"in_app_enabled"`

	// Quiet hours in "HH:MM" local time; the window may wrap midnight
	// (start > end). If either bound is empty, quiet hours never apply.
	QuietHoursStart string `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd   string `json:"quiet_hours_end,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultPreferences returns the settings applied when a user has no
// record yet: every notification type on, email and in-app on, WhatsApp
// off until the user verifies a phone number.
func DefaultPreferences(userID uuid.UUID) Preferences {
	return Preferences{
		UserID:            userID,
		NewContractMatch:  true,
		DeadlineReminders: true,
		DailyDigest:       true,
		EmailEnabled:      true,
		WhatsAppEnabled:   false,
		InAppEnabled:      true,
	}
}

// TypeEnabled reports whether the user accepts notifications of the
// given type. Unknown types are allowed through.
func (p Preferences) TypeEnabled(t Type) bool {
	switch t {
	case TypeNewContractMatch:
		return p.NewContractMatch
	case TypeDeadlineReminder:
		return p.DeadlineReminders
	case TypeDailyDigest:
		return p.DailyDigest
	default:
		return true
	}
}

// ChannelEnabled reports whether the user accepts delivery on the
// given channel.
func (p Preferences) ChannelEnabled(c Channel) bool {
	switch c {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelWhatsApp:
		return p.WhatsAppEnabled
	case ChannelInApp:
		return p.InAppEnabled
	default:
		return false
	}
}

// EnabledChannels lists the channels the user has switched on.
func (p Preferences) EnabledChannels() []Channel {
	var out []Channel
	for _, c := range []Channel{ChannelEmail, ChannelWhatsApp, ChannelInApp} {
		if p.ChannelEnabled(c) {
			out = append(out, c)
		}
	}
	return out
}
