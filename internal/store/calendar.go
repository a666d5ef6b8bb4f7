package store

import (
	"context"
	"database/sql"
)

// CalendarEvent is a locally cached calendar entry, kept so the chat context
// can mention today's schedule without a network round-trip.
type CalendarEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	StartTime   string `json:"start_time"` // RFC3339 or all-day date
	EndTime     string `json:"end_time"`
	Location    string `json:"location,omitempty"`
}

// SaveCalendarEvents upserts a batch of cached events.
func (db *DB) SaveCalendarEvents(ctx context.Context, events []CalendarEvent) error {
	for _, e := range events {
		_, err := db.ExecContext(ctx,
			`INSERT INTO calendar_events (id, title, description, start_time, end_time, location, cached_at)
			 VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(id) DO UPDATE SET title = excluded.title, description = excluded.description,
				start_time = excluded.start_time, end_time = excluded.end_time,
				location = excluded.location, cached_at = CURRENT_TIMESTAMP`,
			e.ID, e.Title, sql.NullString{String: e.Description, Valid: e.Description != ""},
			e.StartTime, e.EndTime, sql.NullString{String: e.Location, Valid: e.Location != ""},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// CalendarEventsBetween returns cached events whose start falls in
// [start, end), ordered by start time.
func (db *DB) CalendarEventsBetween(ctx context.Context, start, end string) ([]CalendarEvent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, title, description, start_time, end_time, location FROM calendar_events
		 WHERE start_time >= ? AND start_time < ? ORDER BY start_time ASC`,
		start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CalendarEvent
	for rows.Next() {
		var e CalendarEvent
		var desc, loc sql.NullString
		if err := rows.Scan(&e.ID, &e.Title, &desc, &e.StartTime, &e.EndTime, &loc); err != nil {
			return nil, err
		}
		e.Description = desc.String
		e.Location = loc.String
		out = append(out, e)
	}
	return out, rows.Err()
}
