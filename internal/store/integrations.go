package store

import (
	"context"
	"database/sql"
	"errors"
)

// Integration tracks one third-party connection and its JSON config
// (e.g. the Google OAuth client id/secret).
type Integration struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Config  string `json:"config,omitempty"` // JSON
	Status  string `json:"status"`
}

// GetIntegration returns the integration row for name, or nil if absent.
func (db *DB) GetIntegration(ctx context.Context, name string) (*Integration, error) {
	var i Integration
	var enabled int
	var config sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT name, enabled, config, status FROM integrations WHERE name = ?`, name,
	).Scan(&i.Name, &enabled, &config, &i.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	i.Enabled = enabled == 1
	i.Config = config.String
	return &i, nil
}

// SaveIntegration upserts an integration row.
func (db *DB) SaveIntegration(ctx context.Context, i *Integration) error {
	enabled := 0
	if i.Enabled {
		enabled = 1
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO integrations (name, enabled, config, status) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET enabled = excluded.enabled, config = excluded.config, status = excluded.status`,
		i.Name, enabled, sql.NullString{String: i.Config, Valid: i.Config != ""}, i.Status,
	)
	return err
}

// GetSetting returns the value stored for key, or "" if absent.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SaveSetting upserts a settings key.
func (db *DB) SaveSetting(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	return err
}
