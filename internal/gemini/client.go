// Package gemini calls Google's Gemini generateContent API with tool-calling
// conversations.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lumenapp/lumen/internal/core"
)

const BaseURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash-exp:generateContent"

// ErrModelRequest marks any failure to get a usable reply from the model
// endpoint: transport errors, malformed responses, or an error payload.
var ErrModelRequest = errors.New("model request failed")

// ChatRequest is the generateContent request body.
type ChatRequest struct {
	Contents          []core.Turn            `json:"contents"`
	SystemInstruction *core.Turn             `json:"system_instruction,omitempty"`
	Tools             []ToolSet              `json:"tools,omitempty"`
}

// ToolSet groups function declarations the way the wire format expects.
type ToolSet struct {
	FunctionDeclarations []core.ToolDeclaration `json:"function_declarations"`
}

// ChatResponse is the generateContent response body.
type ChatResponse struct {
	Candidates []struct {
		Content core.Turn `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Status  string `json:"status,omitempty"`
	} `json:"error,omitempty"`
}

// Client calls the Gemini API. Implements core.ModelClient.
type Client struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:  apiKey,
		BaseURL: BaseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SendChat replays the conversation plus system instruction and tool catalog
// and returns the ordered parts of the first candidate.
func (c *Client) SendChat(ctx context.Context, turns []core.Turn, systemInstruction string, tools []core.ToolDeclaration) ([]core.Part, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("%w: API key not set", ErrModelRequest)
	}

	body := ChatRequest{Contents: turns}
	if systemInstruction != "" {
		body.SystemInstruction = &core.Turn{Parts: []core.Part{core.TextPart(systemInstruction)}}
	}
	if len(tools) > 0 {
		body.Tools = []ToolSet{{FunctionDeclarations: tools}}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gemini: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"?key="+c.APIKey, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelRequest, err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	var out ChatResponse
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrModelRequest, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelRequest, out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrModelRequest, resp.StatusCode, string(bodyBytes))
	}
	if len(out.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates in response", ErrModelRequest)
	}
	return out.Candidates[0].Content.Parts, nil
}

// TestConnection sends a trivial prompt to verify the API key works.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.SendChat(ctx, []core.Turn{
		{Role: "user", Parts: []core.Part{core.TextPart("Say 'Hello' in one word.")}},
	}, "", nil)
	return err
}
