// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Message handlers for the chat model, split out of Update's dispatch
// switch: streaming lifecycle, thread management, catalog changes, and
// index notifications.

package chat

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// STREAMING
// =============================================================================

// handleStreamStart transitions into streaming and arms the flush tick.
func (m Model) handleStreamStart(msg StreamStartMsg) (tea.Model, tea.Cmd) {
	m.state = StateStreaming
	m.streamText = ""
	m.activeTool = ""
	m.turnStarted = msg.StartTime
	m.statusBar.SetStreaming(true)
	m.input.Blur()
	m.spin.SetMessage("Thinking")

	cmds := []tea.Cmd{m.spin.Start(), streamTickCmd()}
	// The session creates the thread lazily on first submit; pick up the
	// durable copy if ours is missing or stale.
	if m.thread == nil || m.thread.ID != msg.ThreadID {
		cmds = append(cmds, reloadThreadCmd(m.sess))
	}
	return m, tea.Batch(cmds...)
}

// handleStreamTick flushes buffered deltas into the viewport and
// re-arms the tick while the turn is live.
func (m Model) handleStreamTick(StreamTickMsg) (tea.Model, tea.Cmd) {
	if m.state != StateStreaming {
		return m, nil
	}
	if chunk, ok := m.streamBuf.Flush(); ok && chunk != "" {
		if m.streamText == "" {
			m.spin.Stop()
		}
		m.streamText += chunk
		m.updateViewport(true)
	}
	return m, streamTickCmd()
}

// handleStreamMessage appends a completed message to the display copy.
// The message is already durable; the streaming accumulator resets for
// the next round.
func (m Model) handleStreamMessage(msg StreamMessageMsg) (tea.Model, tea.Cmd) {
	// Deltas still buffered belong to this message; discard them, the
	// completed content supersedes them.
	m.streamBuf.Drain()
	m.streamText = ""

	if m.thread != nil {
		m.thread.Append(msg.Message)
		m.statusBar.SetThread(m.thread.GetTitle(), len(m.thread.Messages))
	}
	m.updateViewport(true)

	// Between tool rounds there is no text on screen; bring the spinner
	// back until the next round produces output.
	var cmd tea.Cmd
	if m.state == StateStreaming && !m.spin.IsActive() {
		m.spin.SetMessage("Thinking")
		cmd = m.spin.Start()
	}
	return m, cmd
}

// handleStreamComplete ends the turn and re-syncs with the store.
func (m Model) handleStreamComplete(msg StreamCompleteMsg) (tea.Model, tea.Cmd) {
	m.state = StateReady
	m.cancelMgr.cancel()
	m.spin.Stop()
	m.statusBar.SetStreaming(false)
	m.streamBuf.Drain()
	m.streamText = ""
	m.activeTool = ""
	m.input.Focus()

	if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
		m.banner.SetError(msg.Err)
	}
	m.updateViewport(true)

	cmds := []tea.Cmd{textinput.Blink}
	if m.sess.CurrentThreadID() != "" {
		cmds = append(cmds, reloadThreadCmd(m.sess))
	}
	return m, tea.Batch(cmds...)
}

// =============================================================================
// THREADS
// =============================================================================

// handleThreadsLoaded opens the thread picker.
func (m Model) handleThreadsLoaded(msg ThreadsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.banner.SetError(msg.Err)
		return m, nil
	}
	m.openPicker(overlayThreads, "Threads", threadItems(msg.Threads, m.sess.CurrentThreadID()))
	return m, nil
}

// handleThreadSwitched installs the loaded thread as the display copy.
func (m Model) handleThreadSwitched(msg ThreadSwitchedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.banner.SetError(msg.Err)
		return m, nil
	}
	m.thread = msg.Thread
	if m.overlay == overlayThreads || m.overlay == overlaySearch {
		m.closeOverlay()
	}
	if m.thread != nil {
		m.statusBar.SetThread(m.thread.GetTitle(), len(m.thread.Messages))
	} else {
		m.statusBar.SetThread("", 0)
	}
	m.updateViewport(true)
	return m, nil
}

// handleThreadDeleted refreshes state after a deletion. Deleting the
// current thread starts a fresh one.
func (m Model) handleThreadDeleted(msg ThreadDeletedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.banner.SetError(msg.Err)
		return m, nil
	}
	m.statusLine = "thread deleted"
	cmds := []tea.Cmd{statusExpireCmd()}
	if m.thread != nil && m.thread.ID == msg.ID {
		m.thread = nil
		cmds = append(cmds, newThreadCmd(m.sess))
	}
	if m.overlay == overlayThreads {
		cmds = append(cmds, loadThreadsCmd(m.sess.Store()))
	}
	return m, tea.Batch(cmds...)
}

// handleSearchResults swaps the search overlay from query entry to
// result browsing.
func (m Model) handleSearchResults(msg SearchResultsMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.banner.SetError(msg.Err)
		return m, nil
	}
	if m.overlay != overlaySearch {
		// Overlay was closed while the search ran.
		return m, nil
	}
	m.openPicker(overlaySearch, "Results for \""+msg.Query+"\"", searchItems(msg.Results))
	return m, nil
}

// =============================================================================
// CATALOG
// =============================================================================

// handleModelSelected updates the status bar after a model switch.
func (m Model) handleModelSelected(msg ModelSelectedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.banner.SetError(msg.Err)
		return m, nil
	}
	enabled := true
	if desc, ok := m.sess.Models().Lookup(msg.ID); ok {
		enabled = desc.Enabled
	}
	m.statusBar.SetModel(msg.ID, enabled)
	m.welcome.SetModel(msg.ID)
	m.closeOverlay()
	m.statusLine = "model: " + msg.ID
	return m, statusExpireCmd()
}

// handleToolToggled updates the open tool picker in place so several
// servers can be toggled without reopening it.
func (m Model) handleToolToggled(msg ToolToggledMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.banner.SetError(msg.Err)
		return m, nil
	}
	if m.picker != nil && m.overlay == overlayTools {
		m.picker.SetChecked(msg.ID, msg.Enabled)
	}
	n := len(m.sess.EnabledToolIDs())
	m.statusBar.SetToolCount(n)
	m.welcome.SetToolCount(n)
	return m, nil
}

// =============================================================================
// INDEX
// =============================================================================

// handleIndexChanged refreshes whatever the external write may have made
// stale, then re-arms the watcher loop.
func (m Model) handleIndexChanged() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{watchIndexCmd(m.idx)}
	// Never clobber an in-flight turn's display state.
	if m.state == StateReady && m.sess.CurrentThreadID() != "" {
		cmds = append(cmds, reloadThreadCmd(m.sess))
	}
	if m.overlay == overlayThreads {
		cmds = append(cmds, loadThreadsCmd(m.sess.Store()))
	}
	return m, tea.Batch(cmds...)
}
