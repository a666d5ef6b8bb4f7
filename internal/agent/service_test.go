package agent

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lumenapp/lumen/internal/core"
	"github.com/lumenapp/lumen/internal/store"
)

func setupService(t *testing.T, client core.ModelClient) (*Service, *store.DB) {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := &Service{
		DB:           db,
		Orchestrator: &Orchestrator{Client: client, Executor: &recordingExecutor{}},
		UserName:     "Ada",
	}
	return s, db
}

func TestChatPersistsBothSides(t *testing.T) {
	client := &scriptedClient{replies: [][]core.Part{{core.TextPart("hi Ada")}}}
	s, db := setupService(t, client)
	session := NewSessionID()

	reply, err := s.Chat(context.Background(), session, "hello")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "hi Ada" {
		t.Errorf("reply = %q", reply)
	}

	msgs, err := db.RecentChatMessages(context.Background(), session, 10)
	if err != nil {
		t.Fatalf("RecentChatMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("persisted messages = %+v", msgs)
	}
	if msgs[1].Content != "hi Ada" {
		t.Errorf("assistant content = %q", msgs[1].Content)
	}
}

func TestChatReplaysHistoryWindow(t *testing.T) {
	client := &scriptedClient{replies: [][]core.Part{{core.TextPart("ok")}}}
	s, db := setupService(t, client)
	session := NewSessionID()

	ctx := context.Background()
	db.InsertChatMessage(ctx, "user", "remember the milk", "", session)
	db.InsertChatMessage(ctx, "assistant", "noted", "", session)

	if _, err := s.Chat(ctx, session, "what did I ask?"); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	turns := client.seen[0]
	if len(turns) != 3 {
		t.Fatalf("model saw %d turns, want 3: %+v", len(turns), turns)
	}
	if turns[0].Role != "user" || turns[0].Parts[0].Text != "remember the milk" {
		t.Errorf("turn 0 = %+v", turns[0])
	}
	if turns[1].Role != "model" || turns[1].Parts[0].Text != "noted" {
		t.Errorf("assistant history not mapped to model role: %+v", turns[1])
	}
	if turns[2].Parts[0].Text != "what did I ask?" {
		t.Errorf("turn 2 = %+v", turns[2])
	}
}

func TestChatSubstitutesAckWhenToolsRanSilently(t *testing.T) {
	client := &scriptedClient{replies: [][]core.Part{
		{callPart("add_reminder", `{"content":"water plants"}`)},
		{},
	}}
	s, _ := setupService(t, client)

	reply, err := s.Chat(context.Background(), NewSessionID(), "remind me to water plants")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != toolsRanAck {
		t.Errorf("reply = %q, want canned acknowledgement", reply)
	}
}

func TestSystemInstructionMentionsCachedEvents(t *testing.T) {
	client := &scriptedClient{replies: [][]core.Part{{core.TextPart("ok")}}}
	s, db := setupService(t, client)

	ctx := context.Background()
	// Cache an event inside today's window so the context block picks it up.
	now := time.Now().Format(time.RFC3339)
	err := db.SaveCalendarEvents(ctx, []store.CalendarEvent{
		{ID: "e1", Title: "Standup", StartTime: now, EndTime: now},
	})
	if err != nil {
		t.Fatalf("SaveCalendarEvents: %v", err)
	}

	instruction := s.systemInstruction(ctx)
	if !strings.Contains(instruction, "Standup") {
		t.Errorf("instruction missing cached event:\n%s", instruction)
	}
	if !strings.Contains(instruction, "Ada") {
		t.Errorf("instruction missing user name:\n%s", instruction)
	}
}

func TestChatSessionIsolation(t *testing.T) {
	client := &scriptedClient{replies: [][]core.Part{{core.TextPart("ok")}}}
	s, db := setupService(t, client)

	ctx := context.Background()
	other := NewSessionID()
	db.InsertChatMessage(ctx, "user", "secret from another session", "", other)

	if _, err := s.Chat(ctx, NewSessionID(), "hi"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	for _, turn := range client.seen[0] {
		for _, p := range turn.Parts {
			if p.Text == "secret from another session" {
				t.Fatal("history leaked across sessions")
			}
		}
	}
}
