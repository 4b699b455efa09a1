// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jeranaias/agentchat-tui/internal/catalog"
	"github.com/jeranaias/agentchat-tui/internal/model"
)

// stubToolCaller is a ToolCaller with programmable behavior.
type stubToolCaller struct {
	defs      []ToolDefinition
	toolsErr  error
	callFn    func(name string, args map[string]any) (model.ToolResult, error)
	toolCalls atomic.Int32
	listCalls atomic.Int32
}

func (s *stubToolCaller) Tools(ctx context.Context, servers []string) ([]ToolDefinition, error) {
	s.listCalls.Add(1)
	if s.toolsErr != nil {
		return nil, s.toolsErr
	}
	return s.defs, nil
}

func (s *stubToolCaller) Call(ctx context.Context, name string, args map[string]any) (model.ToolResult, error) {
	s.toolCalls.Add(1)
	if s.callFn != nil {
		return s.callFn(name, args)
	}
	return model.ToolResult{Name: name, Content: "ok"}, nil
}

func testDescriptor(runtimeModel string) catalog.ModelDescriptor {
	return catalog.ModelDescriptor{
		ID:            "test-model",
		DisplayName:   "Test Model",
		Model:         runtimeModel,
		SupportsTools: true,
		Enabled:       true,
		Temperature:   0.7,
		MaxTokens:     4096,
	}
}

func testServers() []catalog.ToolServerDescriptor {
	return []catalog.ToolServerDescriptor{{ID: "search", Command: "mcp-search"}}
}

// collectEvents drains a stream to completion, failing the test if it does
// not close within the deadline.
func collectEvents(t *testing.T, stream *Stream) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("stream did not close, %d events so far", len(events))
		}
	}
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestRunner_PlainTurn(t *testing.T) {
	server := httptest.NewServer(ndjsonHandler(
		`{"message":{"role":"assistant","content":"Hello "},"done":false}`,
		`{"message":{"role":"assistant","content":"there"},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","eval_count":2,"eval_duration":1000000000}`,
	))
	defer server.Close()

	runner := NewRunner(NewClientWithConfig(&ClientConfig{BaseURL: server.URL}), nil, 0)
	stream, err := runner.Invoke(context.Background(), Request{
		Model:   testDescriptor("llama3.1:8b"),
		History: []model.Message{model.NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	events := collectEvents(t, stream)
	want := []EventKind{EventTextDelta, EventTextDelta, EventMessage, EventDone}
	got := kinds(events)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("event kinds = %v, want %v", got, want)
	}

	if events[0].Delta != "Hello " || events[1].Delta != "there" {
		t.Errorf("deltas = %q, %q", events[0].Delta, events[1].Delta)
	}
	msg := events[2].Message
	if msg == nil || msg.Content != "Hello there" {
		t.Fatalf("completed message = %+v, want content 'Hello there'", msg)
	}
	if msg.Stats == nil {
		t.Error("completed message should carry stats")
	}
}

func TestRunner_ToolRound(t *testing.T) {
	var round atomic.Int32
	rec := &requestRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		if round.Add(1) == 1 {
			ndjsonHandler(
				`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"search__web","arguments":{"query":"weather"}}}]},"done":true,"done_reason":"stop"}`,
			)(w, r)
			return
		}
		ndjsonHandler(
			`{"message":{"role":"assistant","content":"It is sunny."},"done":true,"done_reason":"stop"}`,
		)(w, r)
	}))
	defer server.Close()

	tools := &stubToolCaller{
		defs: []ToolDefinition{{Name: "search__web", Description: "Search the web"}},
		callFn: func(name string, args map[string]any) (model.ToolResult, error) {
			if name != "search__web" {
				t.Errorf("tool called with name %q", name)
			}
			if args["query"] != "weather" {
				t.Errorf("tool args = %v", args)
			}
			return model.ToolResult{Name: name, Content: "sunny, 22C"}, nil
		},
	}

	runner := NewRunner(NewClientWithConfig(&ClientConfig{BaseURL: server.URL}), tools, 0)
	stream, err := runner.Invoke(context.Background(), Request{
		Model:   testDescriptor("llama3.1:8b"),
		Tools:   testServers(),
		History: []model.Message{model.NewUserMessage("weather?")},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	events := collectEvents(t, stream)
	want := []EventKind{
		EventMessage,    // assistant message with tool calls
		EventToolCall,   // progress: invoking
		EventToolResult, // progress: finished
		EventMessage,    // durable tool result message
		EventTextDelta,  // second round answer
		EventMessage,    // completed answer
		EventDone,
	}
	got := kinds(events)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("event kinds = %v, want %v", got, want)
	}

	if !events[0].Message.HasToolCalls() {
		t.Error("first message should carry the tool call request")
	}
	if events[1].ToolCall == nil || events[1].ToolCall.Name != "search__web" {
		t.Errorf("tool call event = %+v", events[1].ToolCall)
	}
	if events[2].ToolResult == nil || events[2].ToolResult.Content != "sunny, 22C" {
		t.Errorf("tool result event = %+v", events[2].ToolResult)
	}
	toolMsg := events[3].Message
	if toolMsg == nil || toolMsg.Role != model.RoleTool || toolMsg.ToolResult == nil {
		t.Fatalf("durable tool message = %+v", toolMsg)
	}
	if events[5].Message.Content != "It is sunny." {
		t.Errorf("final answer = %q", events[5].Message.Content)
	}

	// Second wire request must replay the tool exchange
	second := rec.request(t, 1)
	var sawToolCall, sawToolResult bool
	for _, m := range second.Messages {
		if m.Role == "assistant" && len(m.ToolCalls) > 0 {
			sawToolCall = true
		}
		if m.Role == "tool" && m.ToolName == "search__web" && m.Content == "sunny, 22C" {
			sawToolResult = true
		}
	}
	if !sawToolCall || !sawToolResult {
		t.Errorf("second request missing tool exchange: call=%v result=%v, messages=%+v",
			sawToolCall, sawToolResult, second.Messages)
	}
}

func TestRunner_RoundLimit(t *testing.T) {
	server := httptest.NewServer(ndjsonHandler(
		`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"search__web","arguments":{}}}]},"done":true,"done_reason":"stop"}`,
	))
	defer server.Close()

	tools := &stubToolCaller{defs: []ToolDefinition{{Name: "search__web"}}}
	runner := NewRunner(NewClientWithConfig(&ClientConfig{BaseURL: server.URL}), tools, 2)
	stream, err := runner.Invoke(context.Background(), Request{
		Model:   testDescriptor("llama3.1:8b"),
		Tools:   testServers(),
		History: []model.Message{model.NewUserMessage("loop forever")},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	events := collectEvents(t, stream)
	last := events[len(events)-1]
	if last.Kind != EventError {
		t.Fatalf("last event = %v, want EventError", last.Kind)
	}
	if !errors.Is(last.Err, ErrToolRoundLimit) {
		t.Errorf("terminal error = %v, want ErrToolRoundLimit", last.Err)
	}
	if got := tools.toolCalls.Load(); got != 2 {
		t.Errorf("tool executed %d times, want 2 (one per round)", got)
	}
}

func TestRunner_ConsecutiveToolErrors(t *testing.T) {
	server := httptest.NewServer(ndjsonHandler(
		`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"search__web","arguments":{}}}]},"done":true,"done_reason":"stop"}`,
	))
	defer server.Close()

	tools := &stubToolCaller{
		defs: []ToolDefinition{{Name: "search__web"}},
		callFn: func(name string, args map[string]any) (model.ToolResult, error) {
			return model.ToolResult{}, errors.New("server exploded")
		},
	}

	runner := NewRunner(NewClientWithConfig(&ClientConfig{BaseURL: server.URL}), tools, 0)
	stream, err := runner.Invoke(context.Background(), Request{
		Model:   testDescriptor("llama3.1:8b"),
		Tools:   testServers(),
		History: []model.Message{model.NewUserMessage("try the tool")},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	events := collectEvents(t, stream)
	last := events[len(events)-1]
	if !errors.Is(last.Err, ErrToolErrorLimit) {
		t.Fatalf("terminal error = %v, want ErrToolErrorLimit", last.Err)
	}
	if got := tools.toolCalls.Load(); got != 3 {
		t.Errorf("tool executed %d times before giving up, want 3", got)
	}

	// Each failure still produced a durable error result for the model
	var errorResults int
	for _, ev := range events {
		if ev.Kind == EventToolResult && ev.ToolResult.IsError {
			errorResults++
		}
	}
	if errorResults != 3 {
		t.Errorf("error results = %d, want 3", errorResults)
	}
}

func TestRunner_RuntimeDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL, RetryDelay: time.Millisecond})
	runner := NewRunner(client, nil, 0)
	stream, err := runner.Invoke(context.Background(), Request{
		Model:   testDescriptor("llama3.1:8b"),
		History: []model.Message{model.NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	events := collectEvents(t, stream)
	if len(events) != 1 || events[0].Kind != EventError {
		t.Fatalf("events = %v, want single EventError", kinds(events))
	}
	if !errors.Is(events[0].Err, ErrRuntimeNotRunning) {
		t.Errorf("terminal error = %v, want ErrRuntimeNotRunning", events[0].Err)
	}
}

func TestRunner_Cancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ndjsonHandler(`{"message":{"role":"assistant","content":"partial"},"done":false}`)(w, r)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	runner := NewRunner(NewClientWithConfig(&ClientConfig{BaseURL: server.URL}), nil, 0)
	stream, err := runner.Invoke(context.Background(), Request{
		Model:   testDescriptor("llama3.1:8b"),
		History: []model.Message{model.NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	deadline := time.After(10 * time.Second)
	var events []Event
	cancelled := false
	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				// Cancellation closes without a terminal event
				for _, e := range events {
					if e.Kind == EventDone || e.Kind == EventError {
						t.Errorf("cancelled stream emitted terminal event %v", e.Kind)
					}
				}
				return
			}
			events = append(events, ev)
			if !cancelled && ev.Kind == EventTextDelta {
				cancelled = true
				stream.Cancel()
			}
		case <-deadline:
			t.Fatal("stream did not close after Cancel()")
		}
	}
}

func TestRunner_SystemPromptPrepended(t *testing.T) {
	rec := &requestRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		ndjsonHandler(`{"message":{"role":"assistant","content":"ok"},"done":true,"done_reason":"stop"}`)(w, r)
	}))
	defer server.Close()

	desc := testDescriptor("llama3.1:8b")
	desc.SystemPrompt = "You are terse."

	runner := NewRunner(NewClientWithConfig(&ClientConfig{BaseURL: server.URL}), nil, 0)
	stream, err := runner.Invoke(context.Background(), Request{
		Model:   desc,
		History: []model.Message{model.NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	collectEvents(t, stream)

	req := rec.request(t, 0)
	if len(req.Messages) != 2 {
		t.Fatalf("wire messages = %d, want 2", len(req.Messages))
	}
	if req.Messages[0].Role != "system" || req.Messages[0].Content != "You are terse." {
		t.Errorf("wire[0] = %+v, want the system prompt first", req.Messages[0])
	}
	if req.Messages[1].Role != "user" {
		t.Errorf("wire[1].Role = %q, want user", req.Messages[1].Role)
	}
}

func TestRunner_EndpointOverride(t *testing.T) {
	var defaultHits, overrideHits atomic.Int32

	defaultServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defaultHits.Add(1)
		ndjsonHandler(`{"message":{"role":"assistant","content":"ok"},"done":true}`)(w, r)
	}))
	defer defaultServer.Close()

	overrideServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		overrideHits.Add(1)
		ndjsonHandler(`{"message":{"role":"assistant","content":"ok"},"done":true}`)(w, r)
	}))
	defer overrideServer.Close()

	desc := testDescriptor("llama3.1:8b")
	desc.RuntimeURL = overrideServer.URL

	runner := NewRunner(NewClientWithConfig(&ClientConfig{BaseURL: defaultServer.URL}), nil, 0)
	stream, err := runner.Invoke(context.Background(), Request{
		Model:   desc,
		History: []model.Message{model.NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	collectEvents(t, stream)

	if overrideHits.Load() != 1 {
		t.Errorf("override endpoint hits = %d, want 1", overrideHits.Load())
	}
	if defaultHits.Load() != 0 {
		t.Errorf("default endpoint hits = %d, want 0", defaultHits.Load())
	}
}

func TestRunner_ToolsSkippedForNonToolModel(t *testing.T) {
	rec := &requestRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		ndjsonHandler(`{"message":{"role":"assistant","content":"ok"},"done":true}`)(w, r)
	}))
	defer server.Close()

	tools := &stubToolCaller{defs: []ToolDefinition{{Name: "search__web"}}}
	desc := testDescriptor("llava:7b")
	desc.SupportsTools = false

	runner := NewRunner(NewClientWithConfig(&ClientConfig{BaseURL: server.URL}), tools, 0)
	stream, err := runner.Invoke(context.Background(), Request{
		Model:   desc,
		Tools:   testServers(),
		History: []model.Message{model.NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	collectEvents(t, stream)

	if tools.listCalls.Load() != 0 {
		t.Error("tool definitions should not be listed for a model without tool support")
	}
	if req := rec.request(t, 0); len(req.Tools) != 0 {
		t.Errorf("wire tools = %d, want none", len(req.Tools))
	}
}

func TestRunner_ToolListingFailure(t *testing.T) {
	server := httptest.NewServer(ndjsonHandler(`{"message":{"role":"assistant","content":"ok"},"done":true}`))
	defer server.Close()

	tools := &stubToolCaller{toolsErr: errors.New("all servers unreachable")}
	runner := NewRunner(NewClientWithConfig(&ClientConfig{BaseURL: server.URL}), tools, 0)
	stream, err := runner.Invoke(context.Background(), Request{
		Model:   testDescriptor("llama3.1:8b"),
		Tools:   testServers(),
		History: []model.Message{model.NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	events := collectEvents(t, stream)
	if len(events) != 1 || events[0].Kind != EventError {
		t.Fatalf("events = %v, want single EventError", kinds(events))
	}
}

func TestRunner_InvokeRejectsEmptyModel(t *testing.T) {
	runner := NewRunner(NewClient(), nil, 0)
	_, err := runner.Invoke(context.Background(), Request{})
	if err == nil {
		t.Fatal("Invoke() with no model should fail eagerly")
	}
}

func TestRequest_ServerIDs(t *testing.T) {
	req := Request{Tools: []catalog.ToolServerDescriptor{{ID: "search"}, {ID: "files"}}}
	ids := req.ServerIDs()
	if len(ids) != 2 || ids[0] != "search" || ids[1] != "files" {
		t.Errorf("ServerIDs() = %v", ids)
	}
	if got := (Request{}).ServerIDs(); got != nil {
		t.Errorf("empty request ServerIDs() = %v, want nil", got)
	}
}

func TestEventKind_String(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{EventTextDelta, "text_delta"},
		{EventMessage, "message"},
		{EventToolCall, "tool_call"},
		{EventToolResult, "tool_result"},
		{EventDone, "done"},
		{EventError, "error"},
		{EventKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("EventKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
