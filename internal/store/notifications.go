package store

import "context"

// HasNotified reports whether an external item was already evaluated by the
// proactive agent (whether it was surfaced or skipped).
func (db *DB) HasNotified(ctx context.Context, externalID, provider string) (bool, error) {
	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE external_id = ? AND provider = ?`,
		externalID, provider,
	).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordNotification marks an external item as evaluated so it is never
// triaged twice. title holds the surfaced title, or "SKIPPED".
func (db *DB) RecordNotification(ctx context.Context, externalID, provider, title string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO notifications (external_id, provider, title) VALUES (?, ?, ?)
		 ON CONFLICT(external_id, provider) DO NOTHING`,
		externalID, provider, title,
	)
	return err
}
