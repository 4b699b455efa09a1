// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat threads and messages.
//
// This package defines the core domain types used throughout the application
// for representing chat threads, messages, tool calls, and tool results.
//
// # Key Types
//
//   - Thread: Container for a chat session with messages and metadata
//   - Message: Single immutable message with role, content, and optional tool activity
//   - ToolCall: Request from the assistant to invoke a named tool
//   - ToolResult: Outcome of a tool invocation
//   - Role: Message role enumeration (user, assistant, system, tool)
//
// # Usage
//
// Create a new thread and append messages:
//
//	thread := model.NewThread("nova-lite")
//	thread.Append(model.NewUserMessage("Hello!"))
//	thread.Append(model.NewAssistantMessage("Hi, how can I help?"))
//
// Messages are immutable once appended: streaming output is accumulated
// elsewhere and only the completed message enters the thread.
package model
