package core

import (
	"context"
	"encoding/json"
)

// ModelClient abstracts the model endpoint. SendChat replays the full
// conversation plus the system instruction and tool catalog and returns the
// ordered parts of the first candidate.
type ModelClient interface {
	SendChat(ctx context.Context, turns []Turn, systemInstruction string, tools []ToolDeclaration) ([]Part, error)
}

// ToolExecutor routes a named tool call to its implementation. The result is
// always a JSON value; execution failures come back as an error-shaped result,
// not an error, so the orchestrator can fold them into the conversation.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args json.RawMessage) json.RawMessage
}

// CredentialStore persists encrypted secrets keyed by provider name.
// Last write wins per key; no transactionality beyond that.
type CredentialStore interface {
	GetToken(ctx context.Context, provider string) (string, bool, error)
	PutToken(ctx context.Context, provider, encrypted string) error
}

// Notifier surfaces a message to the user. Fire and forget; the engine does
// not know how it is rendered.
type Notifier interface {
	Notify(title, body string)
}

// ScreenCapturer takes a screenshot of the primary display and returns it as
// PNG bytes. Capture mechanics live outside the engine.
type ScreenCapturer interface {
	CapturePrimary(ctx context.Context) ([]byte, error)
}
