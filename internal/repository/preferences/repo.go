package preferences

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/bidcloud/notification-engine/internal/model"
)

var ErrPreferencesNotFound = errors.New("preferences not found")

// Repository provides access to the user_notification_preferences table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new preferences repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Get loads the preferences record for a user. Returns
// ErrPreferencesNotFound when the user has never saved preferences.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (model.Preferences, error) {
	query := `
		SELECT user_id, new_contract_notifications, deadline_reminders, daily_digest_enabled,
		       email_enabled, whatsapp_enabled, in_app_enabled,
		       quiet_hours_start, quiet_hours_end, updated_at
		FROM user_notification_preferences
		WHERE user_id = $1;
    `

	var (
		p          model.Preferences
		start, end sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.NewContractMatch, &p.DeadlineReminders, &p.DailyDigest,
		&p.EmailEnabled, &p.WhatsAppEnabled, &p.InAppEnabled,
		&start, &end, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Preferences{}, ErrPreferencesNotFound
		}

		return model.Preferences{}, fmt.Errorf("failed to get preferences: %w", err)
	}

	p.QuietHoursStart = start.String
	p.QuietHoursEnd = end.String

	return p, nil
}

// Upsert writes the full preferences record, creating it on first write.
// Records are never deleted.
func (r *Repository) Upsert(ctx context.Context, p model.Preferences) error {
	query := `
		INSERT INTO user_notification_preferences (
		    user_id, new_contract_notifications, deadline_reminders, daily_digest_enabled,
		    email_enabled, whatsapp_enabled, in_app_enabled,
		    quiet_hours_start, quiet_hours_end, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (user_id) DO UPDATE SET
		    new_contract_notifications = EXCLUDED.new_contract_notifications,
		    deadline_reminders = EXCLUDED.deadline_reminders,
		    daily_digest_enabled = EXCLUDED.daily_digest_enabled,
		    email_enabled = EXCLUDED.email_enabled,
		    whatsapp_enabled = EXCLUDED.whatsapp_enabled,
		    in_app_enabled = EXCLUDED.in_app_enabled,
		    quiet_hours_start = EXCLUDED.quiet_hours_start,
		    quiet_hours_end = EXCLUDED.quiet_hours_end,
		    updated_at = now();
    `

	_, err := r.db.ExecContext(ctx, query,
		p.UserID, p.NewContractMatch, p.DeadlineReminders, p.DailyDigest,
		p.EmailEnabled, p.WhatsAppEnabled, p.InAppEnabled,
		nullable(p.QuietHoursStart), nullable(p.QuietHoursEnd),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}

	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
