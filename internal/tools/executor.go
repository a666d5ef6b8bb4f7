package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xeipuuv/gojsonschema"

	"github.com/lumenapp/lumen/internal/core"
	"github.com/lumenapp/lumen/internal/integrations"
	"github.com/lumenapp/lumen/internal/store"
)

// ErrToolExecution marks a tool that ran and failed. It never aborts an
// orchestration; Execute folds it into an error-shaped result.
var ErrToolExecution = errors.New("tool execution failed")

const searchCacheSize = 128

// Executor routes tool calls by name. It implements core.ToolExecutor.
type Executor struct {
	VaultDir string
	DB       *store.DB
	Gmail    *integrations.Gmail
	Calendar *integrations.Calendar
	Tasks    *integrations.Tasks
	Weather  *integrations.Weather
	Capturer core.ScreenCapturer

	// Search performs a web search. Defaults to the DuckDuckGo instant
	// answer API; tests swap it out.
	Search func(ctx context.Context, query string) (string, error)

	schemas     map[string]*gojsonschema.Schema
	searchCache *lru.Cache[string, string]
	httpClient  *http.Client
}

// NewExecutor builds the dispatcher with every tool wired. Schema compilation
// happens once here; a catalog entry that fails to compile is a programming
// error, so it is returned rather than deferred to dispatch time.
func NewExecutor(vaultDir string, db *store.DB, gmail *integrations.Gmail, calendar *integrations.Calendar, tasks *integrations.Tasks, weather *integrations.Weather, capturer core.ScreenCapturer) (*Executor, error) {
	schemas := make(map[string]*gojsonschema.Schema, len(catalog))
	for _, d := range catalog {
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(d.Parameters))
		if err != nil {
			return nil, fmt.Errorf("compiling schema for %s: %w", d.Name, err)
		}
		schemas[d.Name] = s
	}
	cache, err := lru.New[string, string](searchCacheSize)
	if err != nil {
		return nil, err
	}
	e := &Executor{
		VaultDir:    vaultDir,
		DB:          db,
		Gmail:       gmail,
		Calendar:    calendar,
		Tasks:       tasks,
		Weather:     weather,
		Capturer:    capturer,
		schemas:     schemas,
		searchCache: cache,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	e.Search = e.duckDuckGoSearch
	return e, nil
}

func errResult(msg string) json.RawMessage {
	out, _ := json.Marshal(map[string]string{"error": msg})
	return out
}

// Execute dispatches one tool call. Failures of any kind come back as an
// error-shaped JSON result, never a panic or a Go error, so the conversation
// loop can hand them to the model.
func (e *Executor) Execute(ctx context.Context, name string, args json.RawMessage) json.RawMessage {
	result, err := e.Run(ctx, name, args)
	if err != nil {
		log.Printf("[TOOLS] %s failed: %v", name, err)
		return errResult(err.Error())
	}
	return result
}

// Run is Execute with the error still typed, for callers that want to branch
// on it. Tool failures wrap ErrToolExecution.
func (e *Executor) Run(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	schema, ok := e.schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: %w", name, err)
	}
	if !res.Valid() {
		details := make([]string, 0, len(res.Errors()))
		for _, ve := range res.Errors() {
			details = append(details, ve.String())
		}
		return nil, fmt.Errorf("invalid arguments for %s: %s", name, strings.Join(details, "; "))
	}

	callID := uuid.NewString()[:8]
	log.Printf("[TOOLS] call %s: %s", callID, name)

	value, err := e.run(ctx, name, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrToolExecution, name, err)
	}
	out, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: encoding result: %v", ErrToolExecution, name, err)
	}
	return out, nil
}

func (e *Executor) run(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Sync class: local resources only.
	case "read_file":
		var a struct {
			Path string `json:"path"`
		}
		json.Unmarshal(args, &a)
		content, err := readVaultFile(e.VaultDir, a.Path)
		if err != nil {
			return nil, err
		}
		return map[string]string{"content": content}, nil

	case "write_file":
		var a struct {
			Path    string `json:"path"`
			Content string `json:"content"`
		}
		json.Unmarshal(args, &a)
		if err := writeVaultFile(e.VaultDir, a.Path, a.Content); err != nil {
			return nil, err
		}
		return map[string]string{"status": "success"}, nil

	case "edit_file":
		var a struct {
			Path      string `json:"path"`
			OldString string `json:"old_string"`
			NewString string `json:"new_string"`
		}
		json.Unmarshal(args, &a)
		if err := editVaultFile(e.VaultDir, a.Path, a.OldString, a.NewString); err != nil {
			return nil, err
		}
		return map[string]string{"status": "success"}, nil

	case "list_files":
		var a struct {
			Path string `json:"path"`
		}
		json.Unmarshal(args, &a)
		if a.Path == "" {
			a.Path = "."
		}
		entries, err := listVaultDir(e.VaultDir, a.Path)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"entries": entries}, nil

	case "search_notes":
		var a struct {
			Query string `json:"query"`
		}
		json.Unmarshal(args, &a)
		matches, err := searchNotes(e.VaultDir, a.Query)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"matches": matches}, nil

	case "get_vault_info":
		return describeVault(e.VaultDir)

	case "add_reminder":
		var a struct {
			Content string `json:"content"`
			DueAt   string `json:"due_at"`
		}
		json.Unmarshal(args, &a)
		id, err := e.DB.AddReminder(ctx, a.Content, a.DueAt)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": "success", "id": id}, nil

	case "list_reminders":
		reminders, err := e.DB.ActiveReminders(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"reminders": reminders}, nil

	case "complete_reminder":
		var a struct {
			ID int64 `json:"id"`
		}
		json.Unmarshal(args, &a)
		found, err := e.DB.CompleteReminder(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("no reminder with id %d", a.ID)
		}
		return map[string]string{"status": "success"}, nil

	case "search_clipboard":
		var a struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		json.Unmarshal(args, &a)
		if a.Limit <= 0 {
			a.Limit = 10
		}
		items, err := e.DB.SearchClipboardHistory(ctx, a.Query, a.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"items": items}, nil

	case "search_web":
		var a struct {
			Query string `json:"query"`
		}
		json.Unmarshal(args, &a)
		if cached, ok := e.searchCache.Get(a.Query); ok {
			return map[string]interface{}{"results": cached, "cached": true}, nil
		}
		results, err := e.Search(ctx, a.Query)
		if err != nil {
			return nil, err
		}
		e.searchCache.Add(a.Query, results)
		return map[string]interface{}{"results": results, "cached": false}, nil

	// Async class: network I/O through the token manager.
	case "get_weather":
		var a struct {
			Location string `json:"location"`
		}
		json.Unmarshal(args, &a)
		return e.Weather.Current(ctx, a.Location)

	case "get_calendar_events":
		var a struct {
			TimeMin string `json:"time_min"`
			TimeMax string `json:"time_max"`
		}
		json.Unmarshal(args, &a)
		events, err := e.Calendar.Events(ctx, a.TimeMin, a.TimeMax)
		if err != nil {
			return nil, err
		}
		if err := e.cacheEvents(ctx, events); err != nil {
			log.Printf("[TOOLS] caching calendar events: %v", err)
		}
		return map[string]interface{}{"events": events}, nil

	case "create_calendar_event":
		var a struct {
			Summary     string `json:"summary"`
			Description string `json:"description"`
			StartTime   string `json:"start_time"`
			EndTime     string `json:"end_time"`
			Location    string `json:"location"`
		}
		json.Unmarshal(args, &a)
		created, err := e.Calendar.CreateEvent(ctx, a.Summary, a.Description, a.StartTime, a.EndTime, a.Location)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": "success", "event": created}, nil

	case "get_unread_emails":
		var a struct {
			MaxResults int `json:"max_results"`
		}
		json.Unmarshal(args, &a)
		if a.MaxResults <= 0 {
			a.MaxResults = 5
		}
		msgs, err := e.Gmail.FetchRecent(ctx, a.MaxResults)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"messages": msgs}, nil

	case "send_email":
		var a struct {
			To      string `json:"to"`
			Subject string `json:"subject"`
			Body    string `json:"body"`
		}
		json.Unmarshal(args, &a)
		if err := e.Gmail.Send(ctx, a.To, a.Subject, a.Body); err != nil {
			return nil, err
		}
		return map[string]string{"status": "sent"}, nil

	case "list_tasks":
		var a struct {
			MaxResults int `json:"max_results"`
		}
		json.Unmarshal(args, &a)
		if a.MaxResults <= 0 {
			a.MaxResults = 20
		}
		items, err := e.Tasks.List(ctx, a.MaxResults)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"tasks": items}, nil

	case "create_task":
		var a struct {
			Title string `json:"title"`
			Notes string `json:"notes"`
			Due   string `json:"due"`
		}
		json.Unmarshal(args, &a)
		created, err := e.Tasks.Create(ctx, a.Title, a.Notes, a.Due)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": "success", "task": created}, nil

	case "capture_screen":
		if e.Capturer == nil {
			return nil, errors.New("screen capture not available")
		}
		png, err := e.Capturer.CapturePrimary(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"status":    "captured",
			"mime_type": "image/png",
			"data":      base64.StdEncoding.EncodeToString(png),
		}, nil
	}
	return nil, fmt.Errorf("unknown tool: %s", name)
}

func (e *Executor) cacheEvents(ctx context.Context, events []integrations.CalendarEvent) error {
	rows := make([]store.CalendarEvent, 0, len(events))
	for _, ev := range events {
		start := ev.Start.DateTime
		if start == "" {
			start = ev.Start.Date
		}
		end := ev.End.DateTime
		if end == "" {
			end = ev.End.Date
		}
		rows = append(rows, store.CalendarEvent{
			ID:          ev.ID,
			Title:       ev.Summary,
			Description: ev.Description,
			StartTime:   start,
			EndTime:     end,
			Location:    ev.Location,
		})
	}
	return e.DB.SaveCalendarEvents(ctx, rows)
}

// duckDuckGoSearch queries the instant answer API and flattens the abstract
// plus related topics into a text blob.
func (e *Executor) duckDuckGoSearch(ctx context.Context, query string) (string, error) {
	target := "https://api.duckduckgo.com/?format=json&no_html=1&q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search: HTTP %d", resp.StatusCode)
	}

	var payload struct {
		AbstractText  string `json:"AbstractText"`
		RelatedTopics []struct {
			Text string `json:"Text"`
		} `json:"RelatedTopics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("search: decode: %w", err)
	}

	var parts []string
	if payload.AbstractText != "" {
		parts = append(parts, payload.AbstractText)
	}
	for i, t := range payload.RelatedTopics {
		if i >= 5 {
			break
		}
		if t.Text != "" {
			parts = append(parts, t.Text)
		}
	}
	if len(parts) == 0 {
		return "no results found", nil
	}
	return strings.Join(parts, "\n"), nil
}
