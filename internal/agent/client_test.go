// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/agentchat-tui/internal/model"
)

// ndjsonHandler returns a handler that writes the given lines as a
// newline-delimited JSON stream.
func ndjsonHandler(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher, _ := w.(http.Flusher)
		for _, line := range lines {
			io.WriteString(w, line+"\n")
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// capturedRequest decodes the chat request body a test server received.
type capturedRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role      string `json:"role"`
		Content   string `json:"content"`
		ToolName  string `json:"tool_name"`
		ToolCalls []struct {
			Function struct {
				Name      string         `json:"name"`
				Arguments map[string]any `json:"arguments"`
			} `json:"function"`
		} `json:"tool_calls"`
	} `json:"messages"`
	Tools []struct {
		Type     string `json:"type"`
		Function struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			Parameters  json.RawMessage `json:"parameters"`
		} `json:"function"`
	} `json:"tools"`
	Options *struct {
		Temperature float64 `json:"temperature"`
		NumPredict  int     `json:"num_predict"`
	} `json:"options"`
}

// requestRecorder captures every chat request body a test server receives.
type requestRecorder struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (r *requestRecorder) record(req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.bodies = append(r.bodies, body)
	r.mu.Unlock()
}

func (r *requestRecorder) request(t *testing.T, i int) capturedRequest {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if i >= len(r.bodies) {
		t.Fatalf("expected at least %d requests, got %d", i+1, len(r.bodies))
	}
	var cr capturedRequest
	if err := json.Unmarshal(r.bodies[i], &cr); err != nil {
		t.Fatalf("failed to decode captured request: %v", err)
	}
	return cr
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping() against live server = %v, want nil", err)
	}
}

func TestPing_NotRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listens here anymore

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
	err := client.Ping(context.Background())
	if !errors.Is(err, ErrRuntimeNotRunning) {
		t.Errorf("Ping() against dead server = %v, want ErrRuntimeNotRunning", err)
	}
}

func TestChatStream(t *testing.T) {
	rec := &requestRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		ndjsonHandler(
			`{"model":"llama3.1:8b","message":{"role":"assistant","content":"Hel"},"done":false}`,
			`{"model":"llama3.1:8b","message":{"role":"assistant","content":"lo"},"done":false}`,
			`{"model":"llama3.1:8b","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","total_duration":1500000000,"prompt_eval_count":12,"eval_count":30,"eval_duration":1000000000}`,
		)(w, r)
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
	history := []model.Message{model.NewUserMessage("hello")}

	acc := NewAccumulator()
	err := client.ChatStream(context.Background(), "llama3.1:8b", history, nil, ChatOptions{Temperature: 0.4, MaxTokens: 2048}, func(chunk Chunk) {
		acc.Add(chunk)
	})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	if got := acc.Content(); got != "Hello" {
		t.Errorf("accumulated content = %q, want %q", got, "Hello")
	}
	if !acc.Done() {
		t.Error("accumulator should be done after the final chunk")
	}
	if acc.DoneReason() != "stop" {
		t.Errorf("DoneReason() = %q, want %q", acc.DoneReason(), "stop")
	}

	msg := acc.Message()
	if msg.Role != model.RoleAssistant {
		t.Errorf("message role = %v, want assistant", msg.Role)
	}
	if msg.Stats == nil {
		t.Fatal("completed message should carry generation stats")
	}
	if msg.Stats.PromptTokens != 12 || msg.Stats.CompletionTokens != 30 {
		t.Errorf("token counts = %d/%d, want 12/30", msg.Stats.PromptTokens, msg.Stats.CompletionTokens)
	}
	if msg.Stats.DurationMs != 1500 {
		t.Errorf("DurationMs = %d, want 1500", msg.Stats.DurationMs)
	}
	if msg.Stats.TokensPerSec < 29.9 || msg.Stats.TokensPerSec > 30.1 {
		t.Errorf("TokensPerSec = %.2f, want ~30", msg.Stats.TokensPerSec)
	}

	// The request on the wire carries the history and options
	req := rec.request(t, 0)
	if req.Model != "llama3.1:8b" {
		t.Errorf("wire model = %q, want llama3.1:8b", req.Model)
	}
	if !req.Stream {
		t.Error("wire request should have stream: true")
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "hello" {
		t.Errorf("wire messages = %+v, want single user message", req.Messages)
	}
	if req.Options == nil || req.Options.Temperature != 0.4 || req.Options.NumPredict != 2048 {
		t.Errorf("wire options = %+v, want temperature 0.4, num_predict 2048", req.Options)
	}
}

func TestChatStream_ModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
	err := client.ChatStream(context.Background(), "missing:1b", nil, nil, ChatOptions{}, func(Chunk) {})
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("ChatStream() on 404 = %v, want ErrModelNotFound", err)
	}
}

func TestChatStream_RuntimeErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"model requires more system memory"}`)
	}))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
	err := client.ChatStream(context.Background(), "big:70b", nil, nil, ChatOptions{}, func(Chunk) {})
	if err == nil {
		t.Fatal("ChatStream() on 500 should fail")
	}
	if !strings.Contains(err.Error(), "more system memory") {
		t.Errorf("error should carry the runtime's message, got %v", err)
	}

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("error should be a *ClientError, got %T", err)
	}
	if clientErr.Type != ErrTypeInvalidResponse {
		t.Errorf("error type = %v, want ErrTypeInvalidResponse", clientErr.Type)
	}
}

func TestChatStream_Interrupted(t *testing.T) {
	server := httptest.NewServer(ndjsonHandler(
		`{"message":{"role":"assistant","content":"partial "},"done":false}`,
		`{"message":{"role":"assistant","content":"answer"},"done":false}`,
	))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
	acc := NewAccumulator()
	err := client.ChatStream(context.Background(), "llama3.1:8b", nil, nil, ChatOptions{}, func(chunk Chunk) {
		acc.Add(chunk)
	})
	if !errors.Is(err, ErrStreamInterrupted) {
		t.Fatalf("ChatStream() on truncated stream = %v, want ErrStreamInterrupted", err)
	}
	if acc.Done() {
		t.Error("accumulator must not report done for an interrupted stream")
	}
}

func TestChatStream_SkipsMalformedLines(t *testing.T) {
	server := httptest.NewServer(ndjsonHandler(
		`{"message":{"role":"assistant","content":"good "},"done":false}`,
		`this is not json`,
		`{"message":{"role":"assistant","content":"output"},"done":true,"done_reason":"stop"}`,
	))
	defer server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
	acc := NewAccumulator()
	err := client.ChatStream(context.Background(), "llama3.1:8b", nil, nil, ChatOptions{}, func(chunk Chunk) {
		acc.Add(chunk)
	})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}
	if got := acc.Content(); got != "good output" {
		t.Errorf("content = %q, want %q (malformed line skipped)", got, "good output")
	}
}

func TestChatStream_RetriesConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClientWithConfig(&ClientConfig{
		BaseURL:    server.URL,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})

	start := time.Now()
	err := client.ChatStream(context.Background(), "llama3.1:8b", nil, nil, ChatOptions{}, func(Chunk) {})
	if !errors.Is(err, ErrRuntimeNotRunning) {
		t.Errorf("ChatStream() against dead server = %v, want ErrRuntimeNotRunning", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("retries took %v, retry delay not honored", elapsed)
	}
}

func TestChatStream_CancelledContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":{"role":"assistant","content":"a"},"done":false}`+"\n")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.ChatStream(ctx, "llama3.1:8b", nil, nil, ChatOptions{}, func(chunk Chunk) {
			if chunk.Delta != "" {
				cancel()
			}
		})
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("ChatStream() should fail when its context is cancelled mid-stream")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ChatStream() did not return after cancellation")
	}
}

func TestChatStream_SendsToolDefinitions(t *testing.T) {
	rec := &requestRecorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		ndjsonHandler(`{"message":{"role":"assistant","content":"ok"},"done":true,"done_reason":"stop"}`)(w, r)
	}))
	defer server.Close()

	defs := []ToolDefinition{
		{
			Name:        "search__web",
			Description: "Search the web",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
		},
	}

	client := NewClientWithConfig(&ClientConfig{BaseURL: server.URL})
	err := client.ChatStream(context.Background(), "llama3.1:8b", nil, defs, ChatOptions{}, func(Chunk) {})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	req := rec.request(t, 0)
	if len(req.Tools) != 1 {
		t.Fatalf("wire tools count = %d, want 1", len(req.Tools))
	}
	tool := req.Tools[0]
	if tool.Type != "function" {
		t.Errorf("tool type = %q, want function", tool.Type)
	}
	if tool.Function.Name != "search__web" {
		t.Errorf("tool name = %q, want search__web", tool.Function.Name)
	}
	if !strings.Contains(string(tool.Function.Parameters), `"query"`) {
		t.Errorf("tool schema should pass through verbatim, got %s", tool.Function.Parameters)
	}
}

func TestWithBaseURL(t *testing.T) {
	client := NewClientWithConfig(&ClientConfig{BaseURL: "http://127.0.0.1:11434"})

	override := client.WithBaseURL("http://gpu-box:11434")
	if override.BaseURL() != "http://gpu-box:11434" {
		t.Errorf("override BaseURL() = %q", override.BaseURL())
	}
	if client.BaseURL() != "http://127.0.0.1:11434" {
		t.Errorf("original client mutated, BaseURL() = %q", client.BaseURL())
	}

	// Same or empty URL returns the client unchanged
	if client.WithBaseURL("") != client {
		t.Error("WithBaseURL(\"\") should return the same client")
	}
	if client.WithBaseURL("http://127.0.0.1:11434") != client {
		t.Error("WithBaseURL(same) should return the same client")
	}
}

func TestReadChunk_ToolCalls(t *testing.T) {
	line := `{"message":{"role":"assistant","content":"","tool_calls":[` +
		`{"function":{"name":"search__web","arguments":{"query":"go"}}},` +
		`{"function":{"name":"files__read","arguments":{"path":"main.go"}}}]},"done":false}` + "\n"

	chunk, err := readChunk(bufio.NewReader(strings.NewReader(line)))
	if err != nil {
		t.Fatalf("readChunk() error = %v", err)
	}
	if chunk == nil {
		t.Fatal("readChunk() returned nil chunk")
	}
	if len(chunk.ToolCalls) != 2 {
		t.Fatalf("tool calls = %d, want 2", len(chunk.ToolCalls))
	}
	if chunk.ToolCalls[0].Name != "search__web" || chunk.ToolCalls[1].Name != "files__read" {
		t.Errorf("tool call names = %q, %q", chunk.ToolCalls[0].Name, chunk.ToolCalls[1].Name)
	}
	if chunk.ToolCalls[0].ID == "" || chunk.ToolCalls[0].ID == chunk.ToolCalls[1].ID {
		t.Error("tool calls must get distinct generated IDs")
	}
	if got := chunk.ToolCalls[0].Arguments["query"]; got != "go" {
		t.Errorf("arguments[query] = %v, want go", got)
	}
}

func TestReadChunk_LastLineWithoutNewline(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader(`{"message":{"role":"assistant","content":"tail"},"done":true}`))

	chunk, err := readChunk(reader)
	if err != nil {
		t.Fatalf("readChunk() error = %v", err)
	}
	if chunk == nil || chunk.Delta != "tail" || !chunk.Done {
		t.Errorf("chunk = %+v, want done chunk with content tail", chunk)
	}

	if _, err := readChunk(reader); err != io.EOF {
		t.Errorf("second readChunk() = %v, want io.EOF", err)
	}
}

func TestAccumulator_Reasoning(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(Chunk{Reasoning: "thinking about it... "})
	acc.Add(Chunk{Reasoning: "done thinking"})
	acc.Add(Chunk{Delta: "The answer is 4."})
	acc.Add(Chunk{Done: true, DoneReason: "stop"})

	msg := acc.Message()
	if msg.Content != "The answer is 4." {
		t.Errorf("content = %q", msg.Content)
	}
	if msg.Reasoning != "thinking about it... done thinking" {
		t.Errorf("reasoning = %q", msg.Reasoning)
	}
}

func TestAccumulator_WallClockFallback(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(Chunk{Delta: "hi"})
	time.Sleep(10 * time.Millisecond)
	// Done chunk without runtime timing, as some endpoints send
	acc.Add(Chunk{Done: true, DoneReason: "stop", CompletionTokens: 5})

	msg := acc.Message()
	if msg.Stats == nil {
		t.Fatal("stats should be present")
	}
	if msg.Stats.DurationMs <= 0 {
		t.Errorf("DurationMs = %d, want wall clock fallback > 0", msg.Stats.DurationMs)
	}
	if msg.Stats.TTFTMs < 0 {
		t.Errorf("TTFTMs = %d, want >= 0", msg.Stats.TTFTMs)
	}
	if msg.Stats.TokensPerSec <= 0 {
		t.Errorf("TokensPerSec = %.2f, want computed fallback > 0", msg.Stats.TokensPerSec)
	}
}

func TestToWireMessages(t *testing.T) {
	assistant := model.NewToolCallMessage("let me check", []model.ToolCall{
		{ID: "c1", Name: "search__web", Arguments: map[string]any{"query": "weather"}},
	})
	toolMsg := model.NewToolResultMessage(model.ToolResult{
		CallID:  "c1",
		Name:    "search__web",
		Content: "sunny, 22C",
	})

	wire := toWireMessages([]model.Message{
		model.NewSystemMessage("be brief"),
		model.NewUserMessage("weather?"),
		assistant,
		toolMsg,
	})

	if len(wire) != 4 {
		t.Fatalf("wire messages = %d, want 4", len(wire))
	}
	if wire[0].Role != "system" || wire[0].Content != "be brief" {
		t.Errorf("wire[0] = %+v", wire[0])
	}
	if wire[1].Role != "user" {
		t.Errorf("wire[1].Role = %q", wire[1].Role)
	}
	if wire[2].Role != "assistant" || len(wire[2].ToolCalls) != 1 {
		t.Fatalf("wire[2] = %+v, want assistant with one tool call", wire[2])
	}
	if wire[2].ToolCalls[0].Function.Name != "search__web" {
		t.Errorf("wire tool call name = %q", wire[2].ToolCalls[0].Function.Name)
	}
	if wire[3].Role != "tool" || wire[3].ToolName != "search__web" || wire[3].Content != "sunny, 22C" {
		t.Errorf("wire[3] = %+v, want tool message with tool_name", wire[3])
	}
}
