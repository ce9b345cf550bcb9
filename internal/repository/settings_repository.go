package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

// SettingsRepository stores per-user preferences.
type SettingsRepository interface {
	Get(ctx context.Context, userID int64) (domain.UserSettings, error)
	Upsert(ctx context.Context, settings domain.UserSettings) error
}

type settingsRepository struct {
	db DBTX
}

// NewSettingsRepository builds repository.
func NewSettingsRepository(db DBTX) SettingsRepository {
	return &settingsRepository{db: db}
}

// Get returns stored settings or the defaults when the user never saved any.
func (r *settingsRepository) Get(ctx context.Context, userID int64) (domain.UserSettings, error) {
	const query = `
        SELECT user_id, email_notifications, push_notifications, weekly_digest, ticket_updates,
               new_messages, theme, language, timezone
        FROM user_settings WHERE user_id=$1`
	var s domain.UserSettings
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&s.UserID,
		&s.EmailNotifications,
		&s.PushNotifications,
		&s.WeeklyDigest,
		&s.TicketUpdates,
		&s.NewMessages,
		&s.Theme,
		&s.Language,
		&s.Timezone,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultUserSettings(userID), nil
	}
	if err != nil {
		return domain.UserSettings{}, err
	}
	return s, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, s domain.UserSettings) error {
	const query = `
        INSERT INTO user_settings (user_id, email_notifications, push_notifications, weekly_digest,
            ticket_updates, new_messages, theme, language, timezone)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (user_id) DO UPDATE SET
            email_notifications=EXCLUDED.email_notifications,
            push_notifications=EXCLUDED.push_notifications,
            weekly_digest=EXCLUDED.weekly_digest,
            ticket_updates=EXCLUDED.ticket_updates,
            new_messages=EXCLUDED.new_messages,
            theme=EXCLUDED.theme,
            language=EXCLUDED.language,
            timezone=EXCLUDED.timezone,
            updated_at=NOW()`
	_, err := r.db.Exec(ctx, query,
		s.UserID,
		s.EmailNotifications,
		s.PushNotifications,
		s.WeeklyDigest,
		s.TicketUpdates,
		s.NewMessages,
		s.Theme,
		s.Language,
		s.Timezone,
	)
	return err
}
