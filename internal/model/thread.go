// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat threads and messages.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/jeranaias/agentchat-tui/internal/util"
)

// TitleMaxRunes is the maximum length of an auto-generated thread title.
const TitleMaxRunes = 50

// TitleTimeLayout is the timestamp format used for threads that have no
// user message to derive a title from.
const TitleTimeLayout = "2006/01/02 15:04"

// =============================================================================
// THREAD TYPE
// =============================================================================

// Thread holds a complete chat thread with history and metadata.
type Thread struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Model is the catalog ID of the model this thread talks to.
	Model string `json:"model"`

	// Messages in append order.
	Messages []Message `json:"messages"`

	// System prompt (optional)
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// NewThread creates a new empty thread with a generated ID.
func NewThread(modelID string) *Thread {
	now := time.Now()
	return &Thread{
		ID:        generateThreadID(),
		Model:     modelID,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds a message to the thread and updates metadata.
// Messages are never modified after this point.
func (t *Thread) Append(msg Message) {
	t.Messages = append(t.Messages, msg)
	t.UpdatedAt = time.Now()
	t.updateTitle()
}

// AppendAll adds multiple messages in order.
func (t *Thread) AppendAll(msgs ...Message) {
	for _, msg := range msgs {
		t.Append(msg)
	}
}

// LastMessage returns the most recent message, or nil if empty.
func (t *Thread) LastMessage() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[len(t.Messages)-1]
}

// LastAssistantMessage returns the most recent assistant message, or nil.
func (t *Thread) LastAssistantMessage() *Message {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == RoleAssistant {
			return &t.Messages[i]
		}
	}
	return nil
}

// LastUserMessage returns the most recent user message, or nil.
func (t *Thread) LastUserMessage() *Message {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == RoleUser {
			return &t.Messages[i]
		}
	}
	return nil
}

// MessageCount returns the number of messages.
func (t *Thread) MessageCount() int {
	return len(t.Messages)
}

// IsEmpty returns true if there are no messages.
func (t *Thread) IsEmpty() bool {
	return len(t.Messages) == 0
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// updateTitle derives a title from the first user message if not set.
func (t *Thread) updateTitle() {
	if t.Title != "" {
		return
	}
	for _, msg := range t.Messages {
		if msg.Role == RoleUser && msg.Content != "" {
			t.Title = msg.Preview(TitleMaxRunes)
			return
		}
	}
}

// SetTitle manually sets the thread title.
func (t *Thread) SetTitle(title string) {
	t.Title = title
	t.UpdatedAt = time.Now()
}

// GetTitle returns the thread title. Threads with no user message fall
// back to a timestamp label derived from creation time.
func (t *Thread) GetTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return t.CreatedAt.Format(TitleTimeLayout)
}

// =============================================================================
// TOKEN TRACKING
// =============================================================================

// EstimateTokens estimates the total token count of the thread.
func (t *Thread) EstimateTokens() int {
	total := 0

	if t.SystemPrompt != "" {
		total += (len(t.SystemPrompt) + 3) / 4
	}

	for _, msg := range t.Messages {
		total += msg.EstimateTokens()
		// Overhead for message structure (~4 tokens per message)
		total += 4
	}

	return total
}

// =============================================================================
// METADATA
// =============================================================================

// ThreadMeta holds lightweight metadata for listing threads.
type ThreadMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Preview      string    `json:"preview"`
}

// Meta returns metadata about the thread.
func (t *Thread) Meta() ThreadMeta {
	return ThreadMeta{
		ID:           t.ID,
		Title:        t.GetTitle(),
		Model:        t.Model,
		MessageCount: len(t.Messages),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		Preview:      t.Preview(),
	}
}

// Preview returns a short preview of the thread content.
func (t *Thread) Preview() string {
	for _, msg := range t.Messages {
		if msg.Role == RoleUser && msg.Content != "" {
			return msg.Preview(80)
		}
	}
	return ""
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateThreadID creates a unique thread ID.
func generateThreadID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "thr_" + hex.EncodeToString(bytes)
}

// Clone creates a deep copy of the thread.
func (t *Thread) Clone() *Thread {
	clone := &Thread{
		ID:           t.ID,
		Title:        t.Title,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		Model:        t.Model,
		SystemPrompt: t.SystemPrompt,
		Messages:     make([]Message, len(t.Messages)),
	}

	for i, msg := range t.Messages {
		if msg.ToolCalls != nil {
			calls := make([]ToolCall, len(msg.ToolCalls))
			copy(calls, msg.ToolCalls)
			msg.ToolCalls = calls
		}
		if msg.ToolResult != nil {
			result := *msg.ToolResult
			msg.ToolResult = &result
		}
		if msg.Stats != nil {
			stats := *msg.Stats
			msg.Stats = &stats
		}
		clone.Messages[i] = msg
	}

	return clone
}

// FormatRelativeTime renders a timestamp as a short "time ago" label for
// thread lists.
func FormatRelativeTime(ts time.Time) string {
	d := time.Since(ts)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return util.IntToString(int(d.Minutes())) + "m ago"
	case d < 24*time.Hour:
		return util.IntToString(int(d.Hours())) + "h ago"
	case d < 7*24*time.Hour:
		return util.IntToString(int(d.Hours()/24)) + "d ago"
	default:
		return ts.Format("2006-01-02")
	}
}
