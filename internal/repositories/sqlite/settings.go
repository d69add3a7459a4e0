package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/sirupsen/logrus"
)

// SettingsRepository is a key/value table for device state such as the auth token
type SettingsRepository struct {
	*BaseRepository[string]
}

// NewSettingsRepository creates a new SQLite settings repository
func NewSettingsRepository(db *sql.DB, logger *logrus.Logger) *SettingsRepository {
	return &SettingsRepository{
		BaseRepository: NewBaseRepository[string](db, "kiosk_settings", logger),
	}
}

// GetSetting returns the value and whether it was present
func (r *SettingsRepository) GetSetting(ctx context.Context, key string) (string, bool, error) {
	row := r.executeQueryRow(ctx, "get_setting", `SELECT value FROM kiosk_settings WHERE key = ?`, key)

	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, repositories.NewRepositoryError("get_setting", r.table, key, err)
	}
	return value, true, nil
}

// SetSetting inserts or replaces a value
func (r *SettingsRepository) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO kiosk_settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	_, err := r.executeExec(ctx, "set_setting", query, key, value, time.Now().UTC())
	return err
}

// DeleteSetting removes a key; missing keys are not an error
func (r *SettingsRepository) DeleteSetting(ctx context.Context, key string) error {
	_, err := r.executeExec(ctx, "delete_setting", `DELETE FROM kiosk_settings WHERE key = ?`, key)
	return err
}
