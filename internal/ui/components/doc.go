// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the agentchat TUI.
//
// Components are presentation-only: they receive domain values (messages,
// catalog descriptors, thread metadata) and a Theme, and return rendered
// strings. State transitions live in the chat model, not here.
//
// # Key Types
//
//   - MessageBubble: role-styled rendering of one thread message
//   - CodeBlock: chroma-highlighted fenced code
//   - Markdown: glamour rendering for assistant prose
//   - Picker: generic selection overlay for threads, models, and tools
//   - StatusBar: model, tool, and thread summary line
//   - ErrorBanner: recoverable-error display with a retry hint
//   - Spinner: streaming/thinking indicator
package components
