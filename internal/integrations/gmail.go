// Package integrations holds the networked capabilities the agent can reach
// through the token lifecycle manager: Google Calendar, Gmail, Tasks, and the
// wttr.in weather service.
package integrations

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lumenapp/lumen/internal/tokens"
)

// GmailMessage is one fetched mail summary.
type GmailMessage struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	Snippet  string `json:"snippet"`
	Subject  string `json:"subject,omitempty"`
	From     string `json:"from,omitempty"`
	Date     string `json:"date,omitempty"`
}

// Gmail wraps the Gmail REST API.
type Gmail struct {
	Tokens  *tokens.Manager
	BaseURL string
}

// NewGmail returns a Gmail client over the given token manager.
func NewGmail(m *tokens.Manager) *Gmail {
	return &Gmail{Tokens: m, BaseURL: "https://gmail.googleapis.com/gmail/v1"}
}

// FetchRecent returns up to maxResults unread inbox messages with their
// Subject/From/Date headers resolved.
func (g *Gmail) FetchRecent(ctx context.Context, maxResults int) ([]GmailMessage, error) {
	return g.FetchWithQuery(ctx, maxResults, "is:unread inbox")
}

// FetchWithQuery runs an arbitrary Gmail search query.
func (g *Gmail) FetchWithQuery(ctx context.Context, maxResults int, query string) ([]GmailMessage, error) {
	listURL := fmt.Sprintf("%s/users/me/messages?maxResults=%d&q=%s", g.BaseURL, maxResults, url.QueryEscape(query))

	var list struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := g.getJSON(ctx, listURL, &list); err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	var out []GmailMessage
	for _, ref := range list.Messages {
		var detail struct {
			ID       string `json:"id"`
			ThreadID string `json:"threadId"`
			Snippet  string `json:"snippet"`
			Payload  struct {
				Headers []struct {
					Name  string `json:"name"`
					Value string `json:"value"`
				} `json:"headers"`
			} `json:"payload"`
		}
		if err := g.getJSON(ctx, g.BaseURL+"/users/me/messages/"+ref.ID, &detail); err != nil {
			return nil, fmt.Errorf("fetching message %s: %w", ref.ID, err)
		}

		msg := GmailMessage{ID: detail.ID, ThreadID: detail.ThreadID, Snippet: detail.Snippet}
		for _, h := range detail.Payload.Headers {
			switch h.Name {
			case "Subject":
				msg.Subject = h.Value
			case "From":
				msg.From = h.Value
			case "Date":
				msg.Date = h.Value
			}
		}
		out = append(out, msg)
	}
	return out, nil
}

// Send delivers a plain-text email as a raw RFC 822 message.
func (g *Gmail) Send(ctx context.Context, to, subject, body string) error {
	raw := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body)
	payload, err := json.Marshal(map[string]string{
		"raw": base64.RawURLEncoding.EncodeToString([]byte(raw)),
	})
	if err != nil {
		return err
	}

	resp, err := g.Tokens.Do(ctx, "google", func(accessToken string) (*http.Request, error) {
		// The builder runs again on a 401 retry, so the body reader is
		// rebuilt here rather than shared.
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/users/me/messages/send", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sending email: HTTP %d: %s", resp.StatusCode, string(text))
	}
	return nil
}

func (g *Gmail) getJSON(ctx context.Context, target string, out interface{}) error {
	resp, err := g.Tokens.Do(ctx, "google", func(accessToken string) (*http.Request, error) {
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
