package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lumenapp/lumen/internal/store"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(context.Background(), filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	vault := filepath.Join(dir, "vault")
	if err := os.MkdirAll(vault, 0755); err != nil {
		t.Fatal(err)
	}
	e, err := NewExecutor(vault, db, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return e
}

func decode(t *testing.T, raw json.RawMessage) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("result is not a JSON object: %v (%s)", err, raw)
	}
	return m
}

func TestExecuteUnknownTool(t *testing.T) {
	e := newTestExecutor(t)
	result := decode(t, e.Execute(context.Background(), "bogus", nil))
	if result["error"] != "unknown tool: bogus" {
		t.Errorf("error = %q", result["error"])
	}
}

func TestExecuteRejectsBadArguments(t *testing.T) {
	e := newTestExecutor(t)
	result := decode(t, e.Execute(context.Background(), "add_reminder", json.RawMessage(`{}`)))
	msg, _ := result["error"].(string)
	if !strings.Contains(msg, "invalid arguments for add_reminder") {
		t.Errorf("error = %q, want schema violation", msg)
	}
}

func TestVaultFileTools(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	result := decode(t, e.Execute(ctx, "write_file", json.RawMessage(`{"path":"notes/todo.md","content":"- buy milk\n- call mom\n"}`)))
	if result["status"] != "success" {
		t.Fatalf("write_file: %v", result)
	}

	result = decode(t, e.Execute(ctx, "read_file", json.RawMessage(`{"path":"notes/todo.md"}`)))
	if !strings.Contains(result["content"].(string), "buy milk") {
		t.Errorf("read_file content = %v", result["content"])
	}

	result = decode(t, e.Execute(ctx, "edit_file", json.RawMessage(`{"path":"notes/todo.md","old_string":"buy milk","new_string":"buy oat milk"}`)))
	if result["status"] != "success" {
		t.Fatalf("edit_file: %v", result)
	}
	result = decode(t, e.Execute(ctx, "read_file", json.RawMessage(`{"path":"notes/todo.md"}`)))
	if !strings.Contains(result["content"].(string), "buy oat milk") {
		t.Errorf("edit not applied: %v", result["content"])
	}

	result = decode(t, e.Execute(ctx, "list_files", json.RawMessage(`{"path":"notes"}`)))
	entries := result["entries"].([]interface{})
	if len(entries) != 1 {
		t.Fatalf("list_files entries = %v", entries)
	}

	result = decode(t, e.Execute(ctx, "search_notes", json.RawMessage(`{"query":"OAT MILK"}`)))
	matches := result["matches"].([]interface{})
	if len(matches) != 1 {
		t.Fatalf("search_notes matches = %v", matches)
	}
	match := matches[0].(map[string]interface{})
	if match["file"] != filepath.Join("notes", "todo.md") {
		t.Errorf("match file = %v", match["file"])
	}

	result = decode(t, e.Execute(ctx, "get_vault_info", nil))
	if result["note_count"].(float64) != 1 {
		t.Errorf("vault info = %v", result)
	}
}

func TestVaultPathTraversalRejected(t *testing.T) {
	e := newTestExecutor(t)
	result := decode(t, e.Execute(context.Background(), "read_file", json.RawMessage(`{"path":"../../etc/passwd"}`)))
	if _, ok := result["error"]; !ok {
		t.Fatalf("traversal not rejected: %v", result)
	}
}

func TestReminderTools(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	result := decode(t, e.Execute(ctx, "add_reminder", json.RawMessage(`{"content":"water plants"}`)))
	if result["status"] != "success" {
		t.Fatalf("add_reminder: %v", result)
	}
	id := int64(result["id"].(float64))

	result = decode(t, e.Execute(ctx, "list_reminders", nil))
	reminders := result["reminders"].([]interface{})
	if len(reminders) != 1 {
		t.Fatalf("reminders = %v", reminders)
	}

	result = decode(t, e.Execute(ctx, "complete_reminder", json.RawMessage(`{"id":`+jsonInt(id)+`}`)))
	if result["status"] != "success" {
		t.Fatalf("complete_reminder: %v", result)
	}

	result = decode(t, e.Execute(ctx, "complete_reminder", json.RawMessage(`{"id":9999}`)))
	if _, ok := result["error"]; !ok {
		t.Errorf("completing a missing reminder should fail: %v", result)
	}
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestSearchWebUsesCache(t *testing.T) {
	e := newTestExecutor(t)
	calls := 0
	e.Search = func(ctx context.Context, query string) (string, error) {
		calls++
		return "answer for " + query, nil
	}

	ctx := context.Background()
	first := decode(t, e.Execute(ctx, "search_web", json.RawMessage(`{"query":"go generics"}`)))
	second := decode(t, e.Execute(ctx, "search_web", json.RawMessage(`{"query":"go generics"}`)))

	if calls != 1 {
		t.Errorf("search called %d times, want 1", calls)
	}
	if first["cached"] != false || second["cached"] != true {
		t.Errorf("cache flags: first=%v second=%v", first["cached"], second["cached"])
	}
	if second["results"] != "answer for go generics" {
		t.Errorf("cached result = %v", second["results"])
	}
}

type stubCapturer struct {
	png []byte
}

func (s *stubCapturer) CapturePrimary(ctx context.Context) ([]byte, error) {
	return s.png, nil
}

func TestCaptureScreenEncodesPNG(t *testing.T) {
	e := newTestExecutor(t)
	e.Capturer = &stubCapturer{png: []byte{0x89, 'P', 'N', 'G'}}

	result := decode(t, e.Execute(context.Background(), "capture_screen", nil))
	if result["status"] != "captured" || result["mime_type"] != "image/png" {
		t.Fatalf("capture result: %v", result)
	}
	data, err := base64.StdEncoding.DecodeString(result["data"].(string))
	if err != nil || string(data[1:4]) != "PNG" {
		t.Errorf("payload not base64 PNG: %v", err)
	}
}

func TestCaptureScreenUnavailable(t *testing.T) {
	e := newTestExecutor(t)
	result := decode(t, e.Execute(context.Background(), "capture_screen", nil))
	if _, ok := result["error"]; !ok {
		t.Errorf("expected error without a capturer: %v", result)
	}
}

func TestDeclarationsCoverCatalog(t *testing.T) {
	decls := Declarations()
	if len(decls) != len(catalog) {
		t.Fatalf("got %d declarations, want %d", len(decls), len(catalog))
	}
	seen := map[string]bool{}
	for _, d := range decls {
		if d.Name == "" || d.Description == "" || len(d.Parameters) == 0 {
			t.Errorf("incomplete declaration: %+v", d)
		}
		if seen[d.Name] {
			t.Errorf("duplicate tool name %s", d.Name)
		}
		seen[d.Name] = true
		if !json.Valid(d.Parameters) {
			t.Errorf("schema for %s is not valid JSON", d.Name)
		}
	}
}
