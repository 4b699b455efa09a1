// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent adapts the model runtime behind an event-stream boundary.
package agent

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jeranaias/agentchat-tui/internal/catalog"
	"github.com/jeranaias/agentchat-tui/internal/model"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventKind identifies what an Event carries.
type EventKind int

const (
	// EventTextDelta carries an incremental piece of assistant text.
	EventTextDelta EventKind = iota

	// EventMessage carries a completed message ready to persist.
	EventMessage

	// EventToolCall announces that a tool invocation is starting.
	EventToolCall

	// EventToolResult announces that a tool invocation finished.
	EventToolResult

	// EventDone marks the successful end of the turn.
	EventDone

	// EventError marks an abnormal end of the turn.
	EventError
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventTextDelta:
		return "text_delta"
	case EventMessage:
		return "message"
	case EventToolCall:
		return "tool_call"
	case EventToolResult:
		return "tool_result"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one item in an invocation stream.
//
// Only the fields relevant to the Kind are set. EventMessage is the
// persistence signal: consumers durably append Message and nothing else.
// EventToolCall and EventToolResult are progress signals for display; the
// matching durable record arrives as its own EventMessage.
type Event struct {
	Kind       EventKind
	Delta      string
	Message    *model.Message
	ToolCall   *model.ToolCall
	ToolResult *model.ToolResult
	Err        error
}

// =============================================================================
// REQUEST
// =============================================================================

// Request describes one turn handed to the adapter.
type Request struct {
	// Model is the catalog entry to generate with.
	Model catalog.ModelDescriptor

	// Tools lists the enabled tool servers offered for this turn.
	// Ignored when the model does not support tool calling.
	Tools []catalog.ToolServerDescriptor

	// History is the conversation so far, ending with the new user message.
	History []model.Message
}

// ServerIDs returns the IDs of the tool servers offered in the request.
func (r Request) ServerIDs() []string {
	if len(r.Tools) == 0 {
		return nil
	}
	ids := make([]string, len(r.Tools))
	for i, t := range r.Tools {
		ids[i] = t.ID
	}
	return ids
}

// =============================================================================
// STREAM
// =============================================================================

// streamBuffer sizes the event channel so delta bursts don't stall the
// producer while the consumer is mid-render.
const streamBuffer = 64

// Stream is a cancellable sequence of invocation events.
//
// The channel returned by Events is closed exactly once, after the final
// EventDone or EventError (or silently after cancellation). Cancel is safe
// to call from any goroutine and at any time, including after the stream
// has already finished.
type Stream struct {
	events    chan Event
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewStream creates a stream whose Cancel invokes the given cancel func.
// Invoker implementations emit events with Emit and must Close when done.
func NewStream(cancel context.CancelFunc) *Stream {
	return &Stream{
		events: make(chan Event, streamBuffer),
		cancel: cancel,
	}
}

// Events returns the channel of invocation events.
// Consumers should range over it until it is closed.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Cancel stops the producer. In-flight generation is abandoned; the events
// channel closes without a terminal EventDone or EventError.
func (s *Stream) Cancel() {
	s.cancel()
}

// Emit delivers an event to the consumer, giving up when the turn is
// cancelled so an abandoned consumer never wedges the producer goroutine.
// Producer side only.
func (s *Stream) Emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close ends the stream. Idempotent. Producer side only.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.events)
	})
}

// =============================================================================
// BOUNDARY INTERFACES
// =============================================================================

// Invoker is the boundary the session layer depends on. Implementations
// turn a Request into a stream of events without exposing transport details.
type Invoker interface {
	// Invoke starts one turn. The returned Stream must be consumed until
	// its channel closes. Errors detectable before any generation starts
	// are returned directly; everything later arrives as an EventError.
	Invoke(ctx context.Context, req Request) (*Stream, error)
}

// ToolDefinition describes one callable tool in the form the runtime
// expects: a name, a human description, and a JSON Schema for arguments.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToolCaller executes tool invocations on behalf of the runner.
// The concrete implementation lives in internal/mcp.
type ToolCaller interface {
	// Tools lists the definitions exposed by the named servers.
	Tools(ctx context.Context, servers []string) ([]ToolDefinition, error)

	// Call invokes a named tool and returns its result. Tool failures are
	// reported in the result with IsError set, not as an error return; the
	// error return is for infrastructure faults (unknown tool, dead server).
	Call(ctx context.Context, name string, args map[string]any) (model.ToolResult, error)
}
