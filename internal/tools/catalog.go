package tools

import (
	"encoding/json"

	"github.com/lumenapp/lumen/internal/core"
)

// Execution class of a tool. Sync tools only touch local resources and hold
// the DB for the duration of the call at most; async tools go over the network
// through the token manager and never run under a local lock.
const (
	classSync  = "sync"
	classAsync = "async"
)

type declaration struct {
	core.ToolDeclaration
	class string
}

func schema(s string) json.RawMessage { return json.RawMessage(s) }

// catalog is the immutable tool list, compiled once. It is handed to the model
// verbatim on every orchestration turn.
var catalog = []declaration{
	{core.ToolDeclaration{
		Name:        "read_file",
		Description: "Read the contents of a note in the vault. Path is relative to the vault root.",
		Parameters: schema(`{"type":"object","properties":{
			"path":{"type":"string","description":"Relative path to the file"}},
			"required":["path"]}`),
	}, classSync},
	{core.ToolDeclaration{
		Name:        "write_file",
		Description: "Write content to a note in the vault, overwriting if it exists. Creates parent directories.",
		Parameters: schema(`{"type":"object","properties":{
			"path":{"type":"string","description":"Relative path to the file"},
			"content":{"type":"string","description":"Full content to write"}},
			"required":["path","content"]}`),
	}, classSync},
	{core.ToolDeclaration{
		Name:        "edit_file",
		Description: "Replace the first occurrence of old_string in a vault note with new_string.",
		Parameters: schema(`{"type":"object","properties":{
			"path":{"type":"string","description":"Relative path to the file"},
			"old_string":{"type":"string","description":"Exact text to replace"},
			"new_string":{"type":"string","description":"Replacement text"}},
			"required":["path","old_string","new_string"]}`),
	}, classSync},
	{core.ToolDeclaration{
		Name:        "list_files",
		Description: "List entries of a vault directory (name, is_dir). Defaults to the vault root.",
		Parameters: schema(`{"type":"object","properties":{
			"path":{"type":"string","description":"Relative path to the directory"}}}`),
	}, classSync},
	{core.ToolDeclaration{
		Name:        "search_notes",
		Description: "Search the vault's markdown notes for a text query. Returns matching lines with file and line number.",
		Parameters: schema(`{"type":"object","properties":{
			"query":{"type":"string","description":"Text to search for"}},
			"required":["query"]}`),
	}, classSync},
	{core.ToolDeclaration{
		Name:        "get_vault_info",
		Description: "Summarize the vault: root path, markdown note count, total size in bytes.",
		Parameters:  schema(`{"type":"object","properties":{}}`),
	}, classSync},
	{core.ToolDeclaration{
		Name:        "add_reminder",
		Description: "Create a reminder. due_at is optional RFC3339.",
		Parameters: schema(`{"type":"object","properties":{
			"content":{"type":"string","description":"What to remind about"},
			"due_at":{"type":"string","description":"Optional due time, RFC3339"}},
			"required":["content"]}`),
	}, classSync},
	{core.ToolDeclaration{
		Name:        "list_reminders",
		Description: "List all active (not completed) reminders.",
		Parameters:  schema(`{"type":"object","properties":{}}`),
	}, classSync},
	{core.ToolDeclaration{
		Name:        "complete_reminder",
		Description: "Mark a reminder as completed by id.",
		Parameters: schema(`{"type":"object","properties":{
			"id":{"type":"integer","description":"Reminder id"}},
			"required":["id"]}`),
	}, classSync},
	{core.ToolDeclaration{
		Name:        "search_clipboard",
		Description: "Search recent clipboard history for a text query.",
		Parameters: schema(`{"type":"object","properties":{
			"query":{"type":"string","description":"Text to search for"},
			"limit":{"type":"integer","description":"Max results, default 10"}},
			"required":["query"]}`),
	}, classSync},
	{core.ToolDeclaration{
		Name:        "search_web",
		Description: "Look up a query on the web. Results are cached, so repeated queries are cheap.",
		Parameters: schema(`{"type":"object","properties":{
			"query":{"type":"string","description":"Search query"}},
			"required":["query"]}`),
	}, classSync},

	{core.ToolDeclaration{
		Name:        "get_weather",
		Description: "Get current weather conditions. Location may be a city name; empty means the user's current location.",
		Parameters: schema(`{"type":"object","properties":{
			"location":{"type":"string","description":"City or place name"}}}`),
	}, classAsync},
	{core.ToolDeclaration{
		Name:        "get_calendar_events",
		Description: "List Google Calendar events between two RFC3339 instants.",
		Parameters: schema(`{"type":"object","properties":{
			"time_min":{"type":"string","description":"Window start, RFC3339"},
			"time_max":{"type":"string","description":"Window end, RFC3339"}},
			"required":["time_min","time_max"]}`),
	}, classAsync},
	{core.ToolDeclaration{
		Name:        "create_calendar_event",
		Description: "Create an event on the user's primary Google Calendar.",
		Parameters: schema(`{"type":"object","properties":{
			"summary":{"type":"string","description":"Event title"},
			"description":{"type":"string","description":"Optional details"},
			"start_time":{"type":"string","description":"Start, RFC3339"},
			"end_time":{"type":"string","description":"End, RFC3339"},
			"location":{"type":"string","description":"Optional location"}},
			"required":["summary","start_time","end_time"]}`),
	}, classAsync},
	{core.ToolDeclaration{
		Name:        "get_unread_emails",
		Description: "Fetch recent unread Gmail messages (subject, sender, snippet).",
		Parameters: schema(`{"type":"object","properties":{
			"max_results":{"type":"integer","description":"Max messages, default 5"}}}`),
	}, classAsync},
	{core.ToolDeclaration{
		Name:        "send_email",
		Description: "Send a plain-text email from the user's Gmail account.",
		Parameters: schema(`{"type":"object","properties":{
			"to":{"type":"string","description":"Recipient address"},
			"subject":{"type":"string","description":"Subject line"},
			"body":{"type":"string","description":"Message body"}},
			"required":["to","subject","body"]}`),
	}, classAsync},
	{core.ToolDeclaration{
		Name:        "list_tasks",
		Description: "List incomplete tasks from the user's default Google Tasks list.",
		Parameters: schema(`{"type":"object","properties":{
			"max_results":{"type":"integer","description":"Max tasks, default 20"}}}`),
	}, classAsync},
	{core.ToolDeclaration{
		Name:        "create_task",
		Description: "Add a task to the user's default Google Tasks list.",
		Parameters: schema(`{"type":"object","properties":{
			"title":{"type":"string","description":"Task title"},
			"notes":{"type":"string","description":"Optional notes"},
			"due":{"type":"string","description":"Optional due time, RFC3339"}},
			"required":["title"]}`),
	}, classAsync},
	{core.ToolDeclaration{
		Name:        "capture_screen",
		Description: "Capture a screenshot of the primary display so you can see what the user sees.",
		Parameters:  schema(`{"type":"object","properties":{}}`),
	}, classAsync},
}

// Declarations returns the catalog in model wire shape.
func Declarations() []core.ToolDeclaration {
	out := make([]core.ToolDeclaration, len(catalog))
	for i, d := range catalog {
		out[i] = d.ToolDeclaration
	}
	return out
}
