// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks the live conversation state and drives turns.
//
// A Session ties the catalogs, the thread store, and the invocation
// adapter together on behalf of one interactive front-end (TUI or REPL).
// It remembers which thread, model, and tool servers are current, and it
// owns the persistence rules for a turn.
//
// # Key Types
//
//   - Session: current thread/model/tool state plus turn execution
//   - Options: tuning knobs such as the history window
//
// # Usage
//
// Create a session and run a turn:
//
//	sess := session.New(store, models, tools, runner)
//	err := sess.SubmitUserMessage(ctx, "hello", func(ev agent.Event) {
//	    // forward to the UI
//	})
//
// Switch what subsequent turns use:
//
//	sess.SelectModel("fast")
//	sess.SetToolEnabled("search", false)
//
// # Durability
//
// SubmitUserMessage appends the user message before invoking the adapter
// and appends each completed assistant or tool message before forwarding
// it to the sink. Text deltas are display-only. A crash or cancellation
// mid-stream therefore loses at most the message still being streamed,
// never one the UI has shown as finished.
package session
