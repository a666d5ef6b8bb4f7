package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumenapp/lumen/internal/core"
	"github.com/lumenapp/lumen/internal/store"
)

// historyWindow is how many persisted messages are replayed into the prompt.
const historyWindow = 10

const persona = `You are Lumen, a helpful desktop sidekick. You live on the user's machine and can read and edit their notes vault, manage reminders, check their calendar, email, and tasks, look things up on the web, and see their screen when asked. Be concise and practical. Use tools when they would help; answer directly when they would not.`

// canned acknowledgement for runs where tools executed but the model
// produced no closing remark.
const toolsRanAck = "Done. Let me know if you need anything else."

// Service is the chat front door: it assembles the system instruction and
// history, persists messages around an orchestration run, and returns the
// final reply.
type Service struct {
	DB           *store.DB
	Orchestrator *Orchestrator
	UserName     string
	VaultDir     string
}

// NewSessionID mints an id for a fresh conversation.
func NewSessionID() string {
	return uuid.NewString()
}

// Chat runs one user message through the orchestration loop.
func (s *Service) Chat(ctx context.Context, sessionID, message string) (string, error) {
	history, err := s.DB.RecentChatMessages(ctx, sessionID, historyWindow)
	if err != nil {
		return "", fmt.Errorf("loading history: %w", err)
	}

	turns := make([]core.Turn, 0, len(history)+1)
	for _, m := range history {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		turns = append(turns, core.Turn{Role: role, Parts: []core.Part{core.TextPart(m.Content)}})
	}
	turns = append(turns, core.Turn{Role: "user", Parts: []core.Part{core.TextPart(message)}})

	if _, err := s.DB.InsertChatMessage(ctx, "user", message, "", sessionID); err != nil {
		return "", fmt.Errorf("saving user message: %w", err)
	}

	result, err := s.Orchestrator.Run(ctx, turns, s.systemInstruction(ctx))
	if err != nil {
		return "", err
	}

	reply := result.Text
	if reply == "" && result.ToolCalls > 0 {
		reply = toolsRanAck
	}

	if _, err := s.DB.InsertChatMessage(ctx, "assistant", reply, "", sessionID); err != nil {
		log.Printf("[AGENT] saving assistant message: %v", err)
	}
	return reply, nil
}

// ClearHistory wipes all persisted conversations.
func (s *Service) ClearHistory(ctx context.Context) error {
	return s.DB.ClearChatMessages(ctx)
}

// systemInstruction builds the persona plus a context block with the current
// time, the user's name, and today's cached calendar events. Lookups are best
// effort; a failed one just leaves its line out.
func (s *Service) systemInstruction(ctx context.Context) string {
	var b strings.Builder
	b.WriteString(persona)

	now := time.Now()
	b.WriteString("\n\nContext:\n")
	fmt.Fprintf(&b, "- Current date and time: %s\n", now.Format("Monday, January 2, 2006 at 3:04 PM"))
	if s.UserName != "" {
		fmt.Fprintf(&b, "- The user's name is %s\n", s.UserName)
	}
	if s.VaultDir != "" {
		fmt.Fprintf(&b, "- The notes vault is at %s; file tools operate relative to it\n", s.VaultDir)
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	events, err := s.DB.CalendarEventsBetween(ctx, dayStart.Format(time.RFC3339), dayStart.Add(24*time.Hour).Format(time.RFC3339))
	if err != nil {
		log.Printf("[AGENT] loading cached events: %v", err)
	} else if len(events) > 0 {
		b.WriteString("- Today's calendar (cached):\n")
		for _, ev := range events {
			line := "  - " + ev.StartTime + " " + ev.Title
			if ev.Location != "" {
				line += " (" + ev.Location + ")"
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}
