// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent adapts the model runtime behind an event-stream boundary.
package agent

import (
	"context"
	"errors"

	"github.com/jeranaias/agentchat-tui/internal/model"
)

// =============================================================================
// RUNNER LIMITS
// =============================================================================

const (
	// DefaultMaxRounds caps how many model/tool exchanges one turn may take.
	DefaultMaxRounds = 8

	// maxConsecutiveToolErrors stops a turn where every tool call is failing,
	// before the round cap burns through the budget.
	maxConsecutiveToolErrors = 3
)

// Sentinel errors for runaway turns.
var (
	ErrToolRoundLimit = errors.New("tool call round limit reached")
	ErrToolErrorLimit = errors.New("too many consecutive tool call failures")
)

// =============================================================================
// RUNNER
// =============================================================================

// Runner implements Invoker on top of a runtime Client and an optional
// ToolCaller. Each Invoke runs a full turn: stream the model's response,
// execute any requested tool calls, feed the results back, and repeat until
// the model answers in plain text or a safety cap trips.
type Runner struct {
	client    *Client
	tools     ToolCaller
	maxRounds int
}

// NewRunner creates a runner. tools may be nil when no tool servers are
// configured; the model then receives no tool definitions and any stray
// tool call it emits gets an error result. maxRounds <= 0 selects
// DefaultMaxRounds.
func NewRunner(client *Client, tools ToolCaller, maxRounds int) *Runner {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Runner{
		client:    client,
		tools:     tools,
		maxRounds: maxRounds,
	}
}

// Invoke starts one turn and returns its event stream.
func (r *Runner) Invoke(ctx context.Context, req Request) (*Stream, error) {
	if req.Model.Model == "" {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "request names no runtime model"}
	}

	ctx, cancel := context.WithCancel(ctx)
	stream := NewStream(cancel)

	go r.run(ctx, req, stream)

	return stream, nil
}

// run is the producer goroutine behind Invoke.
//
// Cancellation closes the stream with no terminal event: the consumer
// observes channel close and knows nothing after the last EventMessage
// was completed.
func (r *Runner) run(ctx context.Context, req Request, stream *Stream) {
	defer stream.Close()

	client := r.client
	if req.Model.RuntimeURL != "" {
		client = client.WithBaseURL(req.Model.RuntimeURL)
	}

	defs, err := r.resolveTools(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			stream.Emit(ctx, Event{Kind: EventError, Err: err})
		}
		return
	}

	history := make([]model.Message, 0, len(req.History)+1)
	if req.Model.SystemPrompt != "" {
		history = append(history, model.NewSystemMessage(req.Model.SystemPrompt))
	}
	history = append(history, req.History...)

	opts := ChatOptions{
		Temperature: req.Model.Temperature,
		MaxTokens:   req.Model.MaxTokens,
	}

	consecutiveErrors := 0
	for round := 0; round < r.maxRounds; round++ {
		acc := NewAccumulator()
		err := client.ChatStream(ctx, req.Model.Model, history, defs, opts, func(chunk Chunk) {
			if chunk.Delta != "" {
				stream.Emit(ctx, Event{Kind: EventTextDelta, Delta: chunk.Delta})
			}
			acc.Add(chunk)
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			stream.Emit(ctx, Event{Kind: EventError, Err: err})
			return
		}

		msg := acc.Message()
		if !stream.Emit(ctx, Event{Kind: EventMessage, Message: &msg}) {
			return
		}

		if !acc.HasToolCalls() {
			stream.Emit(ctx, Event{Kind: EventDone})
			return
		}

		history = append(history, msg)

		for _, call := range msg.ToolCalls {
			if !stream.Emit(ctx, Event{Kind: EventToolCall, ToolCall: &call}) {
				return
			}

			result := r.invokeTool(ctx, call)
			if ctx.Err() != nil {
				return
			}
			if !stream.Emit(ctx, Event{Kind: EventToolResult, ToolResult: &result}) {
				return
			}

			toolMsg := model.NewToolResultMessage(result)
			if !stream.Emit(ctx, Event{Kind: EventMessage, Message: &toolMsg}) {
				return
			}
			history = append(history, toolMsg)

			if result.IsError {
				consecutiveErrors++
				if consecutiveErrors >= maxConsecutiveToolErrors {
					stream.Emit(ctx, Event{Kind: EventError, Err: ErrToolErrorLimit})
					return
				}
			} else {
				consecutiveErrors = 0
			}
		}
	}

	stream.Emit(ctx, Event{Kind: EventError, Err: ErrToolRoundLimit})
}

// resolveTools lists tool definitions for the enabled servers. Models that
// cannot call tools get none, which keeps the request valid for them.
func (r *Runner) resolveTools(ctx context.Context, req Request) ([]ToolDefinition, error) {
	if !req.Model.SupportsTools || r.tools == nil || len(req.Tools) == 0 {
		return nil, nil
	}
	return r.tools.Tools(ctx, req.ServerIDs())
}

// invokeTool executes one tool call, folding infrastructure failures into
// an error result so the model can see what went wrong and recover.
func (r *Runner) invokeTool(ctx context.Context, call model.ToolCall) model.ToolResult {
	if r.tools == nil {
		return model.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: "no tool servers are connected",
			IsError: true,
		}
	}

	result, err := r.tools.Call(ctx, call.Name, call.Arguments)
	if err != nil {
		return model.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: err.Error(),
			IsError: true,
		}
	}

	if result.CallID == "" {
		result.CallID = call.ID
	}
	if result.Name == "" {
		result.Name = call.Name
	}
	return result
}
