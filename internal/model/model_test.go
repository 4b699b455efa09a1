// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat threads and messages.
package model

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRole_DisplayName(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "You"},
		{RoleAssistant, "Assistant"},
		{RoleSystem, "System"},
		{RoleTool, "Tool"},
		{Role("custom"), "custom"},
	}

	for _, tc := range tests {
		t.Run(string(tc.role), func(t *testing.T) {
			if got := tc.role.DisplayName(); got != tc.want {
				t.Errorf("DisplayName() = %q, want %q", got, tc.want)
			}
		})
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessage_GeneratesID(t *testing.T) {
	m1 := NewUserMessage("first")
	m2 := NewUserMessage("second")

	if m1.ID == "" {
		t.Error("NewUserMessage should generate an ID")
	}
	if m1.ID == m2.ID {
		t.Error("Message IDs should be unique")
	}
	if m1.CreatedAt.IsZero() {
		t.Error("NewUserMessage should set CreatedAt")
	}
	if m1.Role != RoleUser {
		t.Errorf("Role = %q, want %q", m1.Role, RoleUser)
	}
}

func TestNewToolCallMessage(t *testing.T) {
	calls := []ToolCall{
		{ID: "call-1", Name: "filesystem__read_file", Arguments: map[string]any{"path": "/tmp/x"}},
	}
	msg := NewToolCallMessage("let me check", calls)

	if msg.Role != RoleAssistant {
		t.Errorf("Role = %q, want assistant", msg.Role)
	}
	if !msg.HasToolCalls() {
		t.Error("HasToolCalls should be true")
	}
	if msg.ToolCalls[0].Name != "filesystem__read_file" {
		t.Errorf("ToolCalls[0].Name = %q", msg.ToolCalls[0].Name)
	}
}

func TestNewToolResultMessage(t *testing.T) {
	msg := NewToolResultMessage(ToolResult{
		CallID:  "call-1",
		Name:    "filesystem__read_file",
		Content: "file contents",
		IsError: false,
	})

	if msg.Role != RoleTool {
		t.Errorf("Role = %q, want tool", msg.Role)
	}
	if msg.Content != "file contents" {
		t.Errorf("Content = %q, want tool result content", msg.Content)
	}
	if msg.ToolResult == nil || msg.ToolResult.CallID != "call-1" {
		t.Error("ToolResult should carry the call ID")
	}
}

func TestMessage_Preview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxLen  int
		want    string
	}{
		{"short", "hello", 10, "hello"},
		{"truncated", "hello world again", 8, "hello..."},
		{"newlines collapsed", "line one\nline two", 20, "line one line two"},
		{"carriage returns dropped", "a\r\nb", 10, "a b"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := NewUserMessage(tc.content)
			if got := msg.Preview(tc.maxLen); got != tc.want {
				t.Errorf("Preview(%d) = %q, want %q", tc.maxLen, got, tc.want)
			}
		})
	}
}

func TestMessage_IsEmpty(t *testing.T) {
	empty := NewAssistantMessage("")
	if !empty.IsEmpty() {
		t.Error("Message with no content should be empty")
	}

	withContent := NewAssistantMessage("hi")
	if withContent.IsEmpty() {
		t.Error("Message with content should not be empty")
	}

	withCalls := NewToolCallMessage("", []ToolCall{{Name: "x"}})
	if withCalls.IsEmpty() {
		t.Error("Message with tool calls should not be empty")
	}
}

func TestMessage_EstimateTokens(t *testing.T) {
	msg := NewUserMessage("12345678") // 8 chars -> ~2 tokens
	if got := msg.EstimateTokens(); got != 2 {
		t.Errorf("EstimateTokens() = %d, want 2", got)
	}
}

// =============================================================================
// GENERATION STATS TESTS
// =============================================================================

func TestGenerationStats_Format(t *testing.T) {
	stats := &GenerationStats{
		CompletionTokens: 128,
		DurationMs:       2500,
		TTFTMs:           234,
		TokensPerSec:     51.2,
	}

	got := stats.Format()
	for _, want := range []string{"2.5s", "128 tokens", "51.2 tok/s", "TTFT 234ms"} {
		if !strings.Contains(got, want) {
			t.Errorf("Format() = %q, want to contain %q", got, want)
		}
	}
}

func TestGenerationStats_FormatSubSecond(t *testing.T) {
	stats := &GenerationStats{DurationMs: 750, CompletionTokens: 10}
	if got := stats.Format(); !strings.Contains(got, "750ms") {
		t.Errorf("Format() = %q, want sub-second duration in ms", got)
	}
}

func TestMessage_FormatStats(t *testing.T) {
	user := NewUserMessage("hi")
	if user.FormatStats() != "" {
		t.Error("User messages should have no stats string")
	}

	assistant := NewAssistantMessage("hello")
	if assistant.FormatStats() != "" {
		t.Error("Assistant message without stats should return empty")
	}

	assistant.Stats = &GenerationStats{DurationMs: 1000, CompletionTokens: 5, TokensPerSec: 5}
	if assistant.FormatStats() == "" {
		t.Error("Assistant message with stats should return a summary")
	}
}

// =============================================================================
// THREAD TESTS
// =============================================================================

func TestNewThread(t *testing.T) {
	thread := NewThread("nova-lite")

	if thread.ID == "" {
		t.Error("NewThread should generate an ID")
	}
	if !strings.HasPrefix(thread.ID, "thr_") {
		t.Errorf("Thread ID %q should have thr_ prefix", thread.ID)
	}
	if thread.Model != "nova-lite" {
		t.Errorf("Model = %q, want nova-lite", thread.Model)
	}
	if !thread.IsEmpty() {
		t.Error("New thread should be empty")
	}
	if thread.CreatedAt.IsZero() || thread.UpdatedAt.IsZero() {
		t.Error("Timestamps should be set")
	}
}

func TestThread_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		thread := NewThread("m")
		if seen[thread.ID] {
			t.Fatalf("Duplicate thread ID generated: %s", thread.ID)
		}
		seen[thread.ID] = true
	}
}

func TestThread_Append(t *testing.T) {
	thread := NewThread("nova-lite")
	before := thread.UpdatedAt

	time.Sleep(10 * time.Millisecond)
	thread.Append(NewUserMessage("hello"))

	if thread.MessageCount() != 1 {
		t.Errorf("MessageCount = %d, want 1", thread.MessageCount())
	}
	if !thread.UpdatedAt.After(before) {
		t.Error("Append should advance UpdatedAt")
	}
}

func TestThread_AutoTitle(t *testing.T) {
	thread := NewThread("nova-lite")
	thread.Append(NewUserMessage("How do I write a parser in Go?"))

	if thread.Title != "How do I write a parser in Go?" {
		t.Errorf("Title = %q, want first user message", thread.Title)
	}

	// Title is set once and does not change with later messages
	thread.Append(NewUserMessage("Something completely different"))
	if thread.Title != "How do I write a parser in Go?" {
		t.Error("Title should stay pinned to the first user message")
	}
}

func TestThread_AutoTitleTruncation(t *testing.T) {
	longMsg := strings.Repeat("a", 100)
	thread := NewThread("nova-lite")
	thread.Append(NewUserMessage(longMsg))

	runes := []rune(thread.Title)
	if len(runes) > TitleMaxRunes {
		t.Errorf("Title has %d runes, want <= %d", len(runes), TitleMaxRunes)
	}
	if !strings.HasSuffix(thread.Title, "...") {
		t.Errorf("Truncated title should end with ellipsis: %q", thread.Title)
	}
}

func TestThread_AutoTitleSkipsSystemMessages(t *testing.T) {
	thread := NewThread("nova-lite")
	thread.Append(NewSystemMessage("you are helpful"))
	thread.Append(NewUserMessage("actual question"))

	if thread.Title != "actual question" {
		t.Errorf("Title = %q, want first user message, not system", thread.Title)
	}
}

func TestThread_GetTitleFallback(t *testing.T) {
	thread := NewThread("nova-lite")

	// No user message: fall back to a creation timestamp label
	got := thread.GetTitle()
	want := thread.CreatedAt.Format(TitleTimeLayout)
	if got != want {
		t.Errorf("GetTitle() = %q, want timestamp %q", got, want)
	}
}

func TestThread_LastMessageHelpers(t *testing.T) {
	thread := NewThread("nova-lite")

	if thread.LastMessage() != nil {
		t.Error("LastMessage on empty thread should be nil")
	}
	if thread.LastUserMessage() != nil {
		t.Error("LastUserMessage on empty thread should be nil")
	}

	thread.Append(NewUserMessage("q1"))
	thread.Append(NewAssistantMessage("a1"))
	thread.Append(NewUserMessage("q2"))

	if got := thread.LastMessage(); got == nil || got.Content != "q2" {
		t.Error("LastMessage should return the newest message")
	}
	if got := thread.LastUserMessage(); got == nil || got.Content != "q2" {
		t.Error("LastUserMessage should return the newest user message")
	}
	if got := thread.LastAssistantMessage(); got == nil || got.Content != "a1" {
		t.Error("LastAssistantMessage should return the newest assistant message")
	}
}

func TestThread_Meta(t *testing.T) {
	thread := NewThread("nova-lite")
	thread.Append(NewUserMessage("what is a goroutine?"))
	thread.Append(NewAssistantMessage("a lightweight thread"))

	meta := thread.Meta()
	if meta.ID != thread.ID {
		t.Error("Meta.ID mismatch")
	}
	if meta.MessageCount != 2 {
		t.Errorf("Meta.MessageCount = %d, want 2", meta.MessageCount)
	}
	if meta.Model != "nova-lite" {
		t.Errorf("Meta.Model = %q", meta.Model)
	}
	if meta.Preview != "what is a goroutine?" {
		t.Errorf("Meta.Preview = %q", meta.Preview)
	}
}

func TestThread_Clone(t *testing.T) {
	thread := NewThread("nova-lite")
	thread.Append(NewToolCallMessage("checking", []ToolCall{
		{ID: "c1", Name: "search", Arguments: map[string]any{"q": "go"}},
	}))
	thread.Append(NewToolResultMessage(ToolResult{CallID: "c1", Name: "search", Content: "result"}))

	clone := thread.Clone()

	if clone.ID != thread.ID || clone.MessageCount() != thread.MessageCount() {
		t.Fatal("Clone should copy identity and messages")
	}

	// Mutating the clone's tool data must not affect the original
	clone.Messages[0].ToolCalls[0].Name = "mutated"
	clone.Messages[1].ToolResult.Content = "mutated"

	if thread.Messages[0].ToolCalls[0].Name != "search" {
		t.Error("Clone should deep-copy tool calls")
	}
	if thread.Messages[1].ToolResult.Content != "result" {
		t.Error("Clone should deep-copy tool results")
	}
}

func TestThread_EstimateTokens(t *testing.T) {
	thread := NewThread("nova-lite")
	thread.SystemPrompt = "12345678" // ~2 tokens

	thread.Append(NewUserMessage("12345678")) // ~2 tokens + 4 overhead

	got := thread.EstimateTokens()
	if got != 8 {
		t.Errorf("EstimateTokens() = %d, want 8", got)
	}
}

// =============================================================================
// RELATIVE TIME TESTS
// =============================================================================

func TestFormatRelativeTime(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		ts   time.Time
		want string
	}{
		{"just now", now.Add(-10 * time.Second), "just now"},
		{"minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"hours", now.Add(-3 * time.Hour), "3h ago"},
		{"days", now.Add(-49 * time.Hour), "2d ago"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatRelativeTime(tc.ts); got != tc.want {
				t.Errorf("FormatRelativeTime = %q, want %q", got, tc.want)
			}
		})
	}

	// Old timestamps use a date format
	old := now.Add(-30 * 24 * time.Hour)
	if got := FormatRelativeTime(old); !strings.Contains(got, "-") {
		t.Errorf("FormatRelativeTime for old timestamp = %q, want date", got)
	}
}
