package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/lumenapp/lumen/internal/core"
)

// maxIterations bounds the model round-trips per user request. The loop
// terminates when a reply carries no function calls or when the ceiling is
// hit, whichever comes first.
const maxIterations = 5

// Orchestrator runs the bounded conversation loop: send the running turn list
// to the model, execute any requested tool calls, fold the results back, and
// repeat until the model answers in plain text.
type Orchestrator struct {
	Client   core.ModelClient
	Executor core.ToolExecutor
	Tools    []core.ToolDeclaration
}

// Result is the outcome of one orchestration run.
type Result struct {
	// Text is the accumulated model prose. Empty with ToolCalls > 0 means
	// the tools ran but the model produced no closing remark; the caller
	// substitutes its own acknowledgement.
	Text      string
	ToolCalls int
	// Turns is the conversation including every folded function turn, so
	// the caller can persist or replay it.
	Turns []core.Turn
}

// Run drives the loop for an already-assembled conversation. history must end
// with the newest user turn. A model endpoint failure aborts the whole run;
// tool failures do not, they are folded back for the model to react to.
func (o *Orchestrator) Run(ctx context.Context, history []core.Turn, systemInstruction string) (*Result, error) {
	turns := make([]core.Turn, len(history))
	copy(turns, history)

	res := &Result{}
	var accumulated []string

	for iteration := 0; iteration < maxIterations; iteration++ {
		parts, err := o.Client.SendChat(ctx, turns, systemInstruction, o.Tools)
		if err != nil {
			return nil, fmt.Errorf("model round %d: %w", iteration+1, err)
		}

		text, calls := partition(parts)
		if text != "" {
			accumulated = appendText(accumulated, text)
		}
		turns = append(turns, core.Turn{Role: "model", Parts: parts})

		if len(calls) == 0 {
			break
		}
		log.Printf("[AGENT] round %d: %d tool call(s)", iteration+1, len(calls))
		res.ToolCalls += len(calls)

		responses := make([]core.Part, 0, len(calls))
		var media []core.Part
		for _, call := range calls {
			result := o.Executor.Execute(ctx, call.Name, call.Args)
			stored, inline := splitMedia(result)
			responses = append(responses, core.ResponsePart(call.Name, stored))
			if inline != nil {
				media = append(media, *inline)
			}
		}
		turns = append(turns, core.Turn{Role: "function", Parts: responses})
		if len(media) > 0 {
			// Large binary payloads go to the model exactly once, in a
			// synthetic user turn, instead of being replayed from history
			// on every subsequent round.
			turns = append(turns, core.Turn{Role: "user", Parts: media})
		}
	}

	res.Text = strings.Join(accumulated, "\n\n")
	res.Turns = turns
	return res, nil
}

// partition splits a model reply into its prose and its function calls.
func partition(parts []core.Part) (string, []core.FunctionCall) {
	var texts []string
	var calls []core.FunctionCall
	for _, p := range parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
		if p.FunctionCall != nil {
			calls = append(calls, *p.FunctionCall)
		}
	}
	return strings.Join(texts, "\n"), calls
}

// appendText adds a chunk to the accumulated prose unless the model is
// repeating itself. Models often restate the running answer verbatim on the
// round after a tool call; comparison is whitespace-normalized so trailing
// newlines or indentation changes do not defeat the check.
func appendText(accumulated []string, chunk string) []string {
	norm := normalize(chunk)
	for _, prev := range accumulated {
		p := normalize(prev)
		if p == norm || strings.HasSuffix(p, norm) {
			return accumulated
		}
	}
	// A chunk that extends the previous one replaces it rather than
	// duplicating the shared prefix.
	if n := len(accumulated); n > 0 && strings.HasPrefix(norm, normalize(accumulated[n-1])) {
		accumulated[n-1] = chunk
		return accumulated
	}
	return append(accumulated, chunk)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitMedia strips a large inline payload out of a tool result before it is
// stored into history. The stored response keeps a short confirmation in the
// payload's place; the payload itself is returned as an inline-data part.
func splitMedia(result json.RawMessage) (json.RawMessage, *core.Part) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(result, &m); err != nil {
		return result, nil
	}
	rawData, ok := m["data"]
	if !ok {
		return result, nil
	}
	var data, mimeType string
	if err := json.Unmarshal(rawData, &data); err != nil || data == "" {
		return result, nil
	}
	if raw, ok := m["mime_type"]; ok {
		json.Unmarshal(raw, &mimeType)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	confirmation, _ := json.Marshal("attached below")
	m["data"] = confirmation
	stored, err := json.Marshal(m)
	if err != nil {
		return result, nil
	}
	return stored, &core.Part{InlineData: &core.InlineData{MimeType: mimeType, Data: data}}
}
