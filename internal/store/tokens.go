package store

import (
	"context"
	"database/sql"
	"errors"
)

// GetToken returns the encrypted blob stored for provider. The second return
// is false when no token exists.
func (db *DB) GetToken(ctx context.Context, provider string) (string, bool, error) {
	var encrypted string
	err := db.QueryRowContext(ctx,
		`SELECT encrypted_token FROM api_tokens WHERE provider = ?`, provider,
	).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return encrypted, true, nil
}

// PutToken stores an encrypted blob for provider, keeping the existing token
// type. Last write wins.
func (db *DB) PutToken(ctx context.Context, provider, encrypted string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO api_tokens (provider, encrypted_token, token_type, updated_at)
		 VALUES (?, ?, 'oauth2', CURRENT_TIMESTAMP)
		 ON CONFLICT(provider) DO UPDATE SET encrypted_token = excluded.encrypted_token, updated_at = CURRENT_TIMESTAMP`,
		provider, encrypted,
	)
	return err
}

// PutAPIKey stores an encrypted API key (as opposed to an OAuth token set).
func (db *DB) PutAPIKey(ctx context.Context, provider, encrypted string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO api_tokens (provider, encrypted_token, token_type, updated_at)
		 VALUES (?, ?, 'api_key', CURRENT_TIMESTAMP)
		 ON CONFLICT(provider) DO UPDATE SET encrypted_token = excluded.encrypted_token, token_type = 'api_key', updated_at = CURRENT_TIMESTAMP`,
		provider, encrypted,
	)
	return err
}

// DeleteToken removes the stored token for provider, if any.
func (db *DB) DeleteToken(ctx context.Context, provider string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM api_tokens WHERE provider = ?`, provider)
	return err
}

// HasToken reports whether any token is stored for provider.
func (db *DB) HasToken(ctx context.Context, provider string) (bool, error) {
	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM api_tokens WHERE provider = ?`, provider,
	).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
