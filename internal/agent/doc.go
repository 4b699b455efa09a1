// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent adapts the model runtime behind an event-stream boundary.
//
// The rest of the application never talks to the runtime directly. It hands
// the Invoker a Request (model descriptor, enabled tool servers, history)
// and consumes a Stream of events: text deltas for live rendering, completed
// messages for persistence, tool call progress, and an explicit done or
// error terminator.
//
// # Key Types
//
//   - Invoker: the boundary interface the session layer depends on
//   - Event / EventKind: one item in an invocation stream
//   - Stream: cancellable event sequence with an explicit end
//   - Client: HTTP client speaking the runtime's streaming chat protocol
//   - Runner: Invoker implementation that drives tool call rounds
//   - ToolCaller: executes tool invocations (implemented by internal/mcp)
//
// # Usage
//
// Build a runner and consume a turn:
//
//	runner := agent.NewRunner(agent.NewClient(), toolCaller, 0)
//	stream, err := runner.Invoke(ctx, agent.Request{
//	    Model:   descriptor,
//	    History: messages,
//	})
//	if err != nil {
//	    return err
//	}
//	for ev := range stream.Events() {
//	    switch ev.Kind {
//	    case agent.EventTextDelta:
//	        render(ev.Delta)
//	    case agent.EventMessage:
//	        persist(*ev.Message)
//	    case agent.EventError:
//	        return ev.Err
//	    }
//	}
//
// # Reliability
//
// EventMessage is the only persistence signal: a consumer that appends
// exactly those messages ends up with a history equivalent to what the
// runtime saw. Cancellation closes the stream with no terminal event, so
// partial output is never mistaken for a completed message.
package agent
