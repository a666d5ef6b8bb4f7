package store

import (
	"context"
	"time"
)

// ClipboardItem is one captured clipboard entry.
type ClipboardItem struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

// SaveClipboardItem records a clipboard capture. The capture loop itself
// lives outside the engine; it just feeds rows in here.
func (db *DB) SaveClipboardItem(ctx context.Context, content, contentType string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO clipboard_history (content, content_type) VALUES (?, ?)`,
		content, contentType,
	)
	return err
}

// SearchClipboardHistory returns the most recent entries containing query.
func (db *DB) SearchClipboardHistory(ctx context.Context, query string, limit int) ([]ClipboardItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT content, created_at FROM clipboard_history
		 WHERE content LIKE ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		"%"+query+"%", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClipboardItem
	for rows.Next() {
		var item ClipboardItem
		if err := rows.Scan(&item.Content, &item.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
