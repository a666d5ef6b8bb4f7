package core

import (
	"encoding/json"
	"time"
)

// Turn is one entry in a conversation: a role plus its ordered parts.
// Roles follow the Gemini wire format: "user", "model", "function".
type Turn struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is the smallest unit of conversation content. Exactly one of the
// fields is set.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
	InlineData       *InlineData       `json:"inlineData,omitempty"`
}

// TextPart builds a text-only part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// ResponsePart builds a function-response part tagged with the tool name it
// came from.
func ResponsePart(name string, response json.RawMessage) Part {
	return Part{FunctionResponse: &FunctionResponse{Name: name, Response: response}}
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// FunctionResponse is a tool result fed back to the model.
type FunctionResponse struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

// InlineData attaches base64-encoded media (e.g. a screenshot) as
// model-visible input.
type InlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// ToolDeclaration describes one callable capability: the name the model uses
// to request it, a natural-language description, and an optional JSON-schema
// parameter shape. Built once at startup, never mutated.
type ToolDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// TokenSet holds the OAuth tokens for one provider. A missing ExpiresAt means
// the access token must be treated as already expired.
type TokenSet struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}
