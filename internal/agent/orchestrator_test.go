package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/lumenapp/lumen/internal/core"
)

// scriptedClient returns each reply in order, then repeats the last one.
type scriptedClient struct {
	replies [][]core.Part
	calls   int
	// seen records the turn list of every SendChat call.
	seen [][]core.Turn
	err  error
}

func (c *scriptedClient) SendChat(ctx context.Context, turns []core.Turn, systemInstruction string, tools []core.ToolDeclaration) ([]core.Part, error) {
	c.calls++
	snapshot := make([]core.Turn, len(turns))
	copy(snapshot, turns)
	c.seen = append(c.seen, snapshot)
	if c.err != nil {
		return nil, c.err
	}
	i := c.calls - 1
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	return c.replies[i], nil
}

// recordingExecutor answers every call with a fixed result.
type recordingExecutor struct {
	names  []string
	result json.RawMessage
}

func (e *recordingExecutor) Execute(ctx context.Context, name string, args json.RawMessage) json.RawMessage {
	e.names = append(e.names, name)
	if e.result != nil {
		return e.result
	}
	return json.RawMessage(`{"ok":true}`)
}

func callPart(name, args string) core.Part {
	return core.Part{FunctionCall: &core.FunctionCall{Name: name, Args: json.RawMessage(args)}}
}

func userTurn(text string) []core.Turn {
	return []core.Turn{{Role: "user", Parts: []core.Part{core.TextPart(text)}}}
}

func TestRunStopsWhenNoCalls(t *testing.T) {
	client := &scriptedClient{replies: [][]core.Part{{core.TextPart("hello there")}}}
	o := &Orchestrator{Client: client, Executor: &recordingExecutor{}}

	res, err := o.Run(context.Background(), userTurn("hi"), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.calls != 1 {
		t.Errorf("model called %d times, want 1", client.calls)
	}
	if res.Text != "hello there" || res.ToolCalls != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestRunCeilingBoundsLoop(t *testing.T) {
	// A model that never stops asking for tools must be cut off at the
	// iteration ceiling.
	client := &scriptedClient{replies: [][]core.Part{{callPart("list_reminders", "{}")}}}
	exec := &recordingExecutor{}
	o := &Orchestrator{Client: client, Executor: exec}

	res, err := o.Run(context.Background(), userTurn("loop forever"), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.calls != maxIterations {
		t.Errorf("model called %d times, want %d", client.calls, maxIterations)
	}
	if len(exec.names) != maxIterations {
		t.Errorf("executor called %d times, want %d", len(exec.names), maxIterations)
	}
	if res.ToolCalls != maxIterations {
		t.Errorf("ToolCalls = %d", res.ToolCalls)
	}
}

func TestRunFoldsToolResponses(t *testing.T) {
	client := &scriptedClient{replies: [][]core.Part{
		{callPart("get_weather", `{"location":"lisbon"}`)},
		{core.TextPart("It is sunny.")},
	}}
	exec := &recordingExecutor{result: json.RawMessage(`{"temp_c":"21"}`)}
	o := &Orchestrator{Client: client, Executor: exec}

	res, err := o.Run(context.Background(), userTurn("weather?"), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Text != "It is sunny." {
		t.Errorf("Text = %q", res.Text)
	}

	// Second round must see the model turn plus a function turn tagged
	// with the tool's name.
	second := client.seen[1]
	last := second[len(second)-1]
	if last.Role != "function" || len(last.Parts) != 1 {
		t.Fatalf("folded turn = %+v", last)
	}
	fr := last.Parts[0].FunctionResponse
	if fr == nil || fr.Name != "get_weather" || string(fr.Response) != `{"temp_c":"21"}` {
		t.Errorf("function response = %+v", fr)
	}
}

func TestRunToolFailureDoesNotAbort(t *testing.T) {
	client := &scriptedClient{replies: [][]core.Part{
		{callPart("send_email", `{}`)},
		{core.TextPart("Sorry, that failed.")},
	}}
	exec := &recordingExecutor{result: json.RawMessage(`{"error":"invalid arguments for send_email: to is required"}`)}
	o := &Orchestrator{Client: client, Executor: exec}

	res, err := o.Run(context.Background(), userTurn("mail bob"), "")
	if err != nil {
		t.Fatalf("tool failure aborted the run: %v", err)
	}
	if res.Text != "Sorry, that failed." {
		t.Errorf("Text = %q", res.Text)
	}
	second := client.seen[1]
	fr := second[len(second)-1].Parts[0].FunctionResponse
	if !strings.Contains(string(fr.Response), "invalid arguments") {
		t.Errorf("error result not folded: %s", fr.Response)
	}
}

func TestRunModelErrorAborts(t *testing.T) {
	wantErr := errors.New("model request failed")
	client := &scriptedClient{err: wantErr}
	o := &Orchestrator{Client: client, Executor: &recordingExecutor{}}

	_, err := o.Run(context.Background(), userTurn("hi"), "")
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped model error", err)
	}
}

func TestRunSuppressesRepeatedText(t *testing.T) {
	client := &scriptedClient{replies: [][]core.Part{
		{core.TextPart("Checking your calendar."), callPart("get_calendar_events", `{}`)},
		{core.TextPart("Checking your calendar.\n")},
	}}
	o := &Orchestrator{Client: client, Executor: &recordingExecutor{}}

	res, err := o.Run(context.Background(), userTurn("what's on today"), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Text != "Checking your calendar." {
		t.Errorf("Text = %q, want single occurrence", res.Text)
	}
}

func TestRunReplacesExtendedText(t *testing.T) {
	client := &scriptedClient{replies: [][]core.Part{
		{core.TextPart("You have two meetings"), callPart("get_calendar_events", `{}`)},
		{core.TextPart("You have two meetings: standup and review.")},
	}}
	o := &Orchestrator{Client: client, Executor: &recordingExecutor{}}

	res, err := o.Run(context.Background(), userTurn("what's on today"), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Text != "You have two meetings: standup and review." {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestRunReinjectsMediaOnce(t *testing.T) {
	capture := `{"status":"captured","mime_type":"image/png","data":"aGVsbG8="}`
	client := &scriptedClient{replies: [][]core.Part{
		{callPart("capture_screen", `{}`)},
		{core.TextPart("I see a terminal.")},
	}}
	exec := &recordingExecutor{result: json.RawMessage(capture)}
	o := &Orchestrator{Client: client, Executor: exec}

	res, err := o.Run(context.Background(), userTurn("what's on my screen"), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Text != "I see a terminal." {
		t.Errorf("Text = %q", res.Text)
	}

	second := client.seen[1]
	// The synthetic user turn carries the payload.
	media := second[len(second)-1]
	if media.Role != "user" || media.Parts[0].InlineData == nil {
		t.Fatalf("media turn = %+v", media)
	}
	if media.Parts[0].InlineData.Data != "aGVsbG8=" || media.Parts[0].InlineData.MimeType != "image/png" {
		t.Errorf("inline data = %+v", media.Parts[0].InlineData)
	}

	// The stored function response must not replay the payload.
	stored := second[len(second)-2]
	if stored.Role != "function" {
		t.Fatalf("stored turn = %+v", stored)
	}
	raw := string(stored.Parts[0].FunctionResponse.Response)
	if strings.Contains(raw, "aGVsbG8=") {
		t.Errorf("payload leaked into history: %s", raw)
	}
	if !strings.Contains(raw, "attached below") {
		t.Errorf("confirmation missing: %s", raw)
	}
}
