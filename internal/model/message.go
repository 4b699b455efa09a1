// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat threads and messages.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/agentchat-tui/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	case RoleTool:
		return "Tool"
	default:
		return string(r)
	}
}

// =============================================================================
// TOOL CALL TYPES
// =============================================================================

// ToolCall is a request from the assistant to invoke a named tool.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResult is the outcome of a tool invocation.
type ToolResult struct {
	CallID  string `json:"call_id,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a thread.
//
// Messages are immutable once appended to a thread: streaming deltas are
// accumulated by the UI layer, and the completed message is constructed in
// full before it is added to history.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`

	// Content
	Content string `json:"content"`

	// Reasoning holds model "thinking" output, kept separate from Content
	// so the UI can collapse it.
	Reasoning string `json:"reasoning,omitempty"`

	// Tool interaction
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`

	// Generation statistics (assistant messages only)
	Stats *GenerationStats `json:"stats,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a completed assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewToolCallMessage creates an assistant message carrying tool call requests.
func NewToolCallMessage(content string, calls []ToolCall) Message {
	msg := NewMessage(RoleAssistant, content)
	msg.ToolCalls = calls
	return msg
}

// NewToolResultMessage creates a tool message carrying an invocation result.
func NewToolResultMessage(result ToolResult) Message {
	msg := NewMessage(RoleTool, result.Content)
	msg.ToolResult = &result
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// Preview returns a truncated single-line preview of the message content.
// UNICODE: Rune-aware truncation preserves multi-byte characters.
func (m Message) Preview(maxRunes int) string {
	return util.TruncateRunes(collapseWhitespace(m.Content), maxRunes)
}

// IsEmpty returns true if the message has no content and no tool activity.
func (m Message) IsEmpty() bool {
	return m.Content == "" && len(m.ToolCalls) == 0 && m.ToolResult == nil
}

// HasToolCalls returns true if the message requests tool invocations.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// EstimateTokens gives a rough estimate of token count.
// Uses the approximation of ~4 characters per token.
func (m Message) EstimateTokens() int {
	return (len(m.Content) + 3) / 4
}

// FormatStats returns a formatted string of generation statistics.
// Returns empty for messages without stats.
func (m Message) FormatStats() string {
	if m.Role != RoleAssistant || m.Stats == nil || m.Stats.DurationMs == 0 {
		return ""
	}
	return m.Stats.Format()
}

// collapseWhitespace flattens newlines so previews stay on one line.
func collapseWhitespace(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '\n', '\t':
			out = append(out, ' ')
		case '\r':
			// drop
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// =============================================================================
// GENERATION STATISTICS
// =============================================================================

// GenerationStats holds timing and token counts for an assistant turn.
type GenerationStats struct {
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	DurationMs       int64   `json:"duration_ms,omitempty"`
	TTFTMs           int64   `json:"ttft_ms,omitempty"`
	TokensPerSec     float64 `json:"tokens_per_sec,omitempty"`
}

// Format returns a human-readable summary.
// Format: "2.5s | 128 tokens | 51.2 tok/s | TTFT 234ms"
func (s *GenerationStats) Format() string {
	durSec := float64(s.DurationMs) / 1000

	var dur string
	if durSec < 1 {
		dur = util.Int64ToString(s.DurationMs) + "ms"
	} else {
		dur = util.FloatToStringPrec(durSec, 1) + "s"
	}

	return dur + " | " +
		util.IntToString(s.CompletionTokens) + " tokens | " +
		util.FloatToStringPrec(s.TokensPerSec, 1) + " tok/s | " +
		"TTFT " + util.Int64ToString(s.TTFTMs) + "ms"
}
