// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent adapts the model runtime behind an event-stream boundary.
package agent

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/agentchat-tui/internal/model"
)

// =============================================================================
// CHUNK
// =============================================================================

// Chunk is one parsed line of a streaming chat response.
type Chunk struct {
	// Delta is the incremental assistant text in this chunk.
	Delta string

	// Reasoning is the incremental "thinking" text, when the model emits it.
	Reasoning string

	// ToolCalls are invocation requests. The runtime sends them whole, not
	// incrementally, usually on the chunk before done.
	ToolCalls []model.ToolCall

	// Done marks the final chunk of the response.
	Done       bool
	DoneReason string

	// Timing and token counts, populated on the done chunk only.
	TotalDuration      time.Duration
	PromptEvalDuration time.Duration
	EvalDuration       time.Duration
	PromptTokens       int
	CompletionTokens   int
}

// readChunk reads and parses a single line from the stream.
// Malformed lines are skipped rather than failing the whole turn.
func readChunk(reader *bufio.Reader) (*Chunk, error) {
	line, err := reader.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) == 0 {
			return nil, io.EOF
		}
		// Try to process the last line even on EOF
		if len(line) == 0 {
			return nil, err
		}
	}

	// Skip empty lines
	if len(line) == 0 {
		return nil, nil
	}

	var response struct {
		Model   string `json:"model"`
		Message struct {
			Role      string         `json:"role"`
			Content   string         `json:"content"`
			Thinking  string         `json:"thinking,omitempty"`
			ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		Done               bool   `json:"done"`
		DoneReason         string `json:"done_reason,omitempty"`
		TotalDuration      int64  `json:"total_duration,omitempty"`
		PromptEvalCount    int    `json:"prompt_eval_count,omitempty"`
		PromptEvalDuration int64  `json:"prompt_eval_duration,omitempty"`
		EvalCount          int    `json:"eval_count,omitempty"`
		EvalDuration       int64  `json:"eval_duration,omitempty"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		// Skip malformed lines
		return nil, nil
	}

	chunk := &Chunk{
		Delta:      response.Message.Content,
		Reasoning:  response.Message.Thinking,
		ToolCalls:  fromWireToolCalls(response.Message.ToolCalls),
		Done:       response.Done,
		DoneReason: response.DoneReason,
	}

	// On completion, extract statistics
	if response.Done {
		chunk.TotalDuration = time.Duration(response.TotalDuration)
		chunk.PromptEvalDuration = time.Duration(response.PromptEvalDuration)
		chunk.EvalDuration = time.Duration(response.EvalDuration)
		chunk.PromptTokens = response.PromptEvalCount
		chunk.CompletionTokens = response.EvalCount
	}

	return chunk, nil
}

// fromWireToolCalls converts runtime tool calls into stored form, assigning
// call IDs because the runtime does not supply them.
func fromWireToolCalls(calls []wireToolCall) []model.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]model.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = model.ToolCall{
			ID:        uuid.NewString(),
			Name:      c.Function.Name,
			Arguments: c.Function.Arguments,
		}
	}
	return out
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

// Accumulator collects streaming chunks into a completed assistant message.
type Accumulator struct {
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	content   strings.Builder
	reasoning strings.Builder
	toolCalls []model.ToolCall

	startTime  time.Time
	firstToken time.Time

	done       bool
	doneReason string
	stats      *model.GenerationStats
}

// NewAccumulator creates an accumulator with the turn clock started.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		startTime: time.Now(),
	}
}

// Add processes a new chunk.
func (a *Accumulator) Add(chunk Chunk) {
	// Record first token
	if a.firstToken.IsZero() && (chunk.Delta != "" || chunk.Reasoning != "") {
		a.firstToken = time.Now()
	}

	a.content.WriteString(chunk.Delta)
	a.reasoning.WriteString(chunk.Reasoning)
	a.toolCalls = append(a.toolCalls, chunk.ToolCalls...)

	if chunk.Done {
		a.done = true
		a.doneReason = chunk.DoneReason
		a.stats = a.finalize(chunk)
	}
}

// finalize computes generation statistics from the done chunk.
func (a *Accumulator) finalize(chunk Chunk) *model.GenerationStats {
	stats := &model.GenerationStats{
		PromptTokens:     chunk.PromptTokens,
		CompletionTokens: chunk.CompletionTokens,
		DurationMs:       chunk.TotalDuration.Milliseconds(),
	}

	if stats.DurationMs == 0 {
		stats.DurationMs = time.Since(a.startTime).Milliseconds()
	}
	if !a.firstToken.IsZero() {
		stats.TTFTMs = a.firstToken.Sub(a.startTime).Milliseconds()
	}

	// Prefer the runtime's own eval timing; fall back to wall clock
	if chunk.EvalDuration > 0 {
		stats.TokensPerSec = float64(chunk.CompletionTokens) / chunk.EvalDuration.Seconds()
	} else if stats.DurationMs > 0 && chunk.CompletionTokens > 0 {
		stats.TokensPerSec = float64(chunk.CompletionTokens) / (float64(stats.DurationMs) / 1000)
	}

	return stats
}

// Done reports whether the stream delivered its final chunk. A stream that
// ends with Done false was interrupted and its content must not be treated
// as a completed message.
func (a *Accumulator) Done() bool {
	return a.done
}

// DoneReason returns the runtime's stated reason for stopping.
func (a *Accumulator) DoneReason() string {
	return a.doneReason
}

// Content returns the accumulated assistant text.
func (a *Accumulator) Content() string {
	return a.content.String()
}

// HasToolCalls reports whether the response requested tool invocations.
func (a *Accumulator) HasToolCalls() bool {
	return len(a.toolCalls) > 0
}

// Message builds the completed assistant message, with reasoning, tool
// calls, and generation statistics attached.
func (a *Accumulator) Message() model.Message {
	msg := model.NewAssistantMessage(a.content.String())
	msg.Reasoning = a.reasoning.String()
	msg.ToolCalls = a.toolCalls
	msg.Stats = a.stats
	return msg
}
