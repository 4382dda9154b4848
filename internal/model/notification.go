package model

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of notification being delivered.
type Type string

const (
	TypeNewContractMatch Type = "new_contract_match"
	TypeDeadlineReminder Type = "deadline_reminder"
	TypeDailyDigest      Type = "daily_digest"
)

// Channel is a delivery mechanism for a notification.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelInApp    Channel = "in_app"

	// ChannelMulti marks a record that represents a fan-out
	// across several channels persisted as a single row.
	ChannelMulti Channel = "multi"
)

// Status is the lifecycle state of a persisted notification.
type Status string

const (
	StatusPending Status = "pending"
	// StatusProcessing marks a pending row claimed by a sweep run,
	// so concurrent sweeps cannot deliver it twice.
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	// StatusSkipped records a dispatch suppressed by the user's
	// notification-type preferences.
	StatusSkipped Status = "skipped"
)

// Priority of a persisted notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Notification represents a persisted notification outcome. Rows double as
// the in-app feed and as the audit trail; they are never deleted.
//
// Invariants: Status == sent implies SentAt is set; Status == pending
// implies ScheduledAt is set.
type Notification struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Type        Type       `json:"type"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Payload     Payload    `json:"payload"`
	Channel     Channel    `json:"channel"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"` // set when deferred past quiet hours
	SentAt      *time.Time `json:"sent_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DispatchRequest is the ephemeral input to the dispatch engine.
// It is created per call and never persisted directly.
type DispatchRequest struct {
	UserID   uuid.UUID `json:"user_id"`
	Type     Type      `json:"type"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Payload  Payload   `json:"payload"`
	Channels []Channel `json:"channels"`
}

// HasChannel reports whether the request asked for the given channel.
func (r DispatchRequest) HasChannel(c Channel) bool {
	for _, rc := range r.Channels {
		if rc == c {
			return true
		}
	}
	return false
}

// DefaultPriority maps a notification type to its record priority.
// Deadline reminders are time-critical, everything else is routine.
func (t Type) DefaultPriority() Priority {
	if t == TypeDeadlineReminder {
		return PriorityHigh
	}
	return PriorityMedium
}
