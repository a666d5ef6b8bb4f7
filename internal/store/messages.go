package store

import (
	"context"
	"database/sql"
	"time"
)

// ChatMessage is one persisted chat entry (role "user" or "assistant").
type ChatMessage struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ImageData string    `json:"image_data,omitempty"` // base64 PNG, when a message carried a screenshot
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// InsertChatMessage saves a message and returns its id.
func (db *DB) InsertChatMessage(ctx context.Context, role, content, imageData, sessionID string) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO chat_messages (role, content, image_data, session_id) VALUES (?, ?, ?, ?)`,
		role, content, imageData, sessionID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentChatMessages returns the last limit messages for a session in
// chronological order. Pass sessionID "" for the unscoped history.
func (db *DB) RecentChatMessages(ctx context.Context, sessionID string, limit int) ([]ChatMessage, error) {
	query := `SELECT id, role, content, image_data, session_id, created_at FROM chat_messages`
	var args []interface{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var image, session sql.NullString
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &image, &session, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.ImageData = image.String
		m.SessionID = session.String
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ClearChatMessages deletes the whole chat history.
func (db *DB) ClearChatMessages(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `DELETE FROM chat_messages`)
	return err
}
