package postgres

import (
	"context"
	"database/sql"

	"carelink/pkg/domain"
	"carelink/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PreferencesRepository struct {
	db *sqlx.DB
}

func NewPreferencesRepository(db *sqlx.DB) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

// FindByUserID returns the preferences row for a user. Absence is reported as
// ErrPreferencesNotFound; callers treat it as a valid empty state.
func (r *PreferencesRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserPreferences, error) {
	var prefs domain.UserPreferences
	query := `
		SELECT user_id, font_size, battery_saver_level, theme, language,
			notifications_enabled, created_at, updated_at
		FROM user_preferences
		WHERE user_id = $1
	`

	err := r.db.GetContext(ctx, &prefs, query, userID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrPreferencesNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find preferences")
	}

	return &prefs, nil
}

// Upsert creates the row on first write and merges supplied fields afterwards.
// COALESCE keeps previously stored values for fields omitted in this update.
func (r *PreferencesRepository) Upsert(ctx context.Context, prefs *domain.UserPreferences) error {
	query := `
		INSERT INTO user_preferences (
			user_id, font_size, battery_saver_level, theme, language,
			notifications_enabled, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, COALESCE($6, TRUE), NOW(), NOW()
		)
		ON CONFLICT (user_id) DO UPDATE SET
			font_size = COALESCE(EXCLUDED.font_size, user_preferences.font_size),
			battery_saver_level = COALESCE(EXCLUDED.battery_saver_level, user_preferences.battery_saver_level),
			theme = COALESCE(EXCLUDED.theme, user_preferences.theme),
			language = COALESCE(EXCLUDED.language, user_preferences.language),
			notifications_enabled = COALESCE($6, user_preferences.notifications_enabled),
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		prefs.UserID, prefs.FontSize, prefs.BatterySaverLevel, prefs.Theme,
		prefs.Language, prefs.NotificationsEnabled,
	)

	return errors.Wrap(err, "failed to upsert preferences")
}
