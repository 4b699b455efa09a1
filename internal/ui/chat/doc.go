// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the Bubble Tea model for the agentchat TUI.
//
// The chat model is the single consumer of session state: key presses
// become session calls, and the turn runner translates the adapter's event
// stream into Bubble Tea messages delivered via Program.Send. Rendering is
// delegated to internal/ui/components.
//
// # Key Types
//
//   - Model: the Bubble Tea model (state machine, overlays, viewport)
//   - TurnRunner: bridges session.SubmitUserMessage onto the message loop
//   - StreamingBuffer: batches token deltas to a capped frame rate
//
// # Streaming
//
// Token deltas do not repaint directly: they accumulate in the
// StreamingBuffer and a 30fps tick flushes them into the viewport. The
// completed message then replaces the accumulated text, so the view ends
// exactly at the persisted content.
//
// # Errors
//
// Recoverable errors (unknown model, thread gone, runtime down) surface in
// a dismissible banner; the model never terminates the program for them.
package chat
