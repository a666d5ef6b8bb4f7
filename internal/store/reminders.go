package store

import (
	"context"
	"database/sql"
	"time"
)

// Reminder is a local reminder row.
type Reminder struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	DueAt     string    `json:"due_at,omitempty"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// AddReminder inserts a reminder and returns its id. dueAt may be empty.
func (db *DB) AddReminder(ctx context.Context, content, dueAt string) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO reminders (content, due_at) VALUES (?, ?)`,
		content, sql.NullString{String: dueAt, Valid: dueAt != ""},
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ActiveReminders returns all reminders that are not completed.
func (db *DB) ActiveReminders(ctx context.Context) ([]Reminder, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, content, due_at, completed, created_at FROM reminders WHERE completed = 0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		var due sql.NullString
		var completed int
		if err := rows.Scan(&r.ID, &r.Content, &due, &completed, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.DueAt = due.String
		r.Completed = completed == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

// CompleteReminder marks a reminder done. Returns false if no such reminder.
func (db *DB) CompleteReminder(ctx context.Context, id int64) (bool, error) {
	res, err := db.ExecContext(ctx, `UPDATE reminders SET completed = 1 WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
