// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// This file declares every Bubble Tea message type the chat interface
// uses, grouped by concern: streaming turn lifecycle, thread management,
// catalog changes, index notifications, and UI state.

package chat

import (
	"time"

	"github.com/jeranaias/agentchat-tui/internal/index"
	"github.com/jeranaias/agentchat-tui/internal/model"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// StreamStartMsg signals that a turn began and the adapter was invoked.
type StreamStartMsg struct {
	ThreadID  string
	StartTime time.Time
}

// StreamTokenMsg delivers a text delta from the stream.
type StreamTokenMsg struct {
	Delta string
}

// StreamTickMsg drives the capped-rate flush of buffered tokens.
type StreamTickMsg struct {
	Time time.Time
}

// StreamToolCallMsg announces a tool invocation starting.
type StreamToolCallMsg struct {
	Call model.ToolCall
}

// StreamToolResultMsg announces a tool invocation finishing.
type StreamToolResultMsg struct {
	Result model.ToolResult
}

// StreamMessageMsg delivers a completed, already-persisted message.
// The model appends it to its in-memory history and resets the streaming
// accumulator: durable state is ahead of the screen, never behind it.
type StreamMessageMsg struct {
	Message model.Message
}

// StreamCompleteMsg signals the end of a turn, successful or not.
type StreamCompleteMsg struct {
	Err error
}

// =============================================================================
// THREAD MESSAGES
// =============================================================================

// ThreadsLoadedMsg delivers the thread list for the picker.
type ThreadsLoadedMsg struct {
	Threads []model.ThreadMeta
	Err     error
}

// ThreadSwitchedMsg confirms the session switched threads.
type ThreadSwitchedMsg struct {
	Thread *model.Thread
	Err    error
}

// ThreadDeletedMsg confirms a thread deletion.
type ThreadDeletedMsg struct {
	ID  string
	Err error
}

// SearchResultsMsg delivers ranked index hits for the search overlay.
type SearchResultsMsg struct {
	Query   string
	Results []index.SearchResult
	Err     error
}

// ExportDoneMsg confirms a thread export.
type ExportDoneMsg struct {
	Path string
	Err  error
}

// =============================================================================
// CATALOG MESSAGES
// =============================================================================

// ModelSelectedMsg confirms a model switch.
type ModelSelectedMsg struct {
	ID  string
	Err error
}

// ToolToggledMsg confirms a tool server toggle.
type ToolToggledMsg struct {
	ID      string
	Enabled bool
	Err     error
}

// =============================================================================
// INDEX MESSAGES
// =============================================================================

// IndexChangedMsg reports that the watcher saw another process write the
// thread directory; the thread list and current thread may be stale.
type IndexChangedMsg struct{}

// =============================================================================
// UI STATE MESSAGES
// =============================================================================

// ErrorMsg displays a recoverable error in the banner.
type ErrorMsg struct {
	Err error
}

// ErrorDismissMsg clears the banner.
type ErrorDismissMsg struct{}

// StatusMsg shows a transient status line ("exported to ...").
type StatusMsg struct {
	Text string
}

// StatusExpireMsg clears the transient status line.
type StatusExpireMsg struct{}

// QuitMsg asks the program to exit after cleanup.
type QuitMsg struct{}
