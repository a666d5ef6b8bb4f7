package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lumenapp/lumen/internal/tokens"
)

// CalendarEvent mirrors the wire shape of a Google Calendar event.
type CalendarEvent struct {
	ID          string           `json:"id"`
	Summary     string           `json:"summary,omitempty"`
	Description string           `json:"description,omitempty"`
	Start       CalendarDateTime `json:"start"`
	End         CalendarDateTime `json:"end"`
	Location    string           `json:"location,omitempty"`
}

// CalendarDateTime is either a timed instant or an all-day date.
type CalendarDateTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

// Calendar wraps the Google Calendar REST API for the primary calendar.
type Calendar struct {
	Tokens  *tokens.Manager
	BaseURL string
}

// NewCalendar returns a Calendar client over the given token manager.
func NewCalendar(m *tokens.Manager) *Calendar {
	return &Calendar{Tokens: m, BaseURL: "https://www.googleapis.com/calendar/v3"}
}

// Events lists events between timeMin and timeMax (RFC3339), expanded to
// single instances and ordered by start time.
func (c *Calendar) Events(ctx context.Context, timeMin, timeMax string) ([]CalendarEvent, error) {
	q := url.Values{
		"timeMin":      {timeMin},
		"timeMax":      {timeMax},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
	}
	target := c.BaseURL + "/calendars/primary/events?" + q.Encode()

	resp, err := c.Tokens.Do(ctx, "google", func(accessToken string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("calendar API: HTTP %d: %s", resp.StatusCode, string(text))
	}

	var out struct {
		Items []CalendarEvent `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("calendar API: decode: %w", err)
	}
	return out.Items, nil
}

// CreateEvent inserts a timed event on the primary calendar and returns the
// created entry.
func (c *Calendar) CreateEvent(ctx context.Context, summary, description, startTime, endTime, location string) (*CalendarEvent, error) {
	body := CalendarEvent{
		Summary:     summary,
		Description: description,
		Location:    location,
		Start:       CalendarDateTime{DateTime: startTime},
		End:         CalendarDateTime{DateTime: endTime},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	resp, err := c.Tokens.Do(ctx, "google", func(accessToken string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/calendars/primary/events", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("creating event: HTTP %d: %s", resp.StatusCode, string(text))
	}

	var created CalendarEvent
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("creating event: decode: %w", err)
	}
	return &created, nil
}
