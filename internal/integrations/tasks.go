package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/lumenapp/lumen/internal/tokens"
)

// Task is one Google Tasks entry.
type Task struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`
	Due   string `json:"due,omitempty"`
	Status string `json:"status,omitempty"`
}

// Tasks wraps the Google Tasks REST API against the user's default list.
type Tasks struct {
	Tokens  *tokens.Manager
	BaseURL string
}

// NewTasks returns a Tasks client over the given token manager.
func NewTasks(m *tokens.Manager) *Tasks {
	return &Tasks{Tokens: m, BaseURL: "https://tasks.googleapis.com/tasks/v1"}
}

// defaultListID resolves the id of the user's first task list.
func (t *Tasks) defaultListID(ctx context.Context) (string, error) {
	var lists struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := t.getJSON(ctx, t.BaseURL+"/users/@me/lists", &lists); err != nil {
		return "", fmt.Errorf("listing task lists: %w", err)
	}
	if len(lists.Items) == 0 {
		return "", errors.New("no task lists found")
	}
	return lists.Items[0].ID, nil
}

// List returns up to maxResults incomplete tasks from the default list.
func (t *Tasks) List(ctx context.Context, maxResults int) ([]Task, error) {
	listID, err := t.defaultListID(ctx)
	if err != nil {
		return nil, err
	}
	var out struct {
		Items []Task `json:"items"`
	}
	target := fmt.Sprintf("%s/lists/%s/tasks?maxResults=%d&showCompleted=false", t.BaseURL, listID, maxResults)
	if err := t.getJSON(ctx, target, &out); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return out.Items, nil
}

// Create adds a task to the default list. notes and due (RFC3339) may be empty.
func (t *Tasks) Create(ctx context.Context, title, notes, due string) (*Task, error) {
	listID, err := t.defaultListID(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(Task{Title: title, Notes: notes, Due: due})
	if err != nil {
		return nil, err
	}

	resp, err := t.Tokens.Do(ctx, "google", func(accessToken string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/lists/%s/tasks", t.BaseURL, listID), bytes.NewReader(payload))
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
		return nil, fmt.Errorf("creating task: HTTP %d: %s", resp.StatusCode, string(text))
	}

	var created Task
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("creating task: decode: %w", err)
	}
	return &created, nil
}

func (t *Tasks) getJSON(ctx context.Context, target string, out interface{}) error {
	resp, err := t.Tokens.Do(ctx, "google", func(accessToken string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(text))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
