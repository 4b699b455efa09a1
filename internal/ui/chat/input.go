// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agentchat-tui/internal/model"
)

// =============================================================================
// KEY HANDLING
// =============================================================================

// handleKey routes a key press by priority: quit, error banner, open
// overlay, stream cancellation, then the input line.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Quit) {
		if m.state == StateStreaming {
			m.cancelMgr.cancel()
			return m, nil
		}
		return m, tea.Quit
	}

	// An error banner swallows the next key press.
	if m.banner.Active() {
		m.banner.Clear()
		return m, nil
	}

	if m.overlay != overlayNone {
		return m.handleOverlayKey(msg)
	}

	if key.Matches(msg, m.keyMap.Cancel) && m.state == StateStreaming {
		m.cancelMgr.cancel()
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keyMap.Submit):
		return m.submitInput()

	case key.Matches(msg, m.keyMap.NewThread):
		return m, newThreadCmd(m.sess)

	case key.Matches(msg, m.keyMap.Threads):
		return m, loadThreadsCmd(m.sess.Store())

	case key.Matches(msg, m.keyMap.Models):
		m.openModelPicker()
		return m, nil

	case key.Matches(msg, m.keyMap.ToolServers):
		m.openToolPicker()
		return m, nil

	case key.Matches(msg, m.keyMap.Search):
		m.openSearch()
		return m, nil

	case key.Matches(msg, m.keyMap.Help):
		m.overlay = overlayHelp
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keyMap.ScrollUp):
		m.viewport.LineUp(1)
		return m, nil
	case key.Matches(msg, m.keyMap.ScrollDown):
		m.viewport.LineDown(1)
		return m, nil
	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	case key.Matches(msg, m.keyMap.ScrollTop):
		m.viewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keyMap.ScrollBottom):
		m.viewport.GotoBottom()
		return m, nil
	}

	if m.state == StateStreaming {
		// The input is parked until the turn completes.
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleOverlayKey drives whichever overlay is open.
func (m Model) handleOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Cancel) {
		// Search backs out of results into the query first.
		if m.overlay == overlaySearch && m.picker != nil {
			m.picker = nil
			m.searchInput.Focus()
			return m, nil
		}
		m.closeOverlay()
		return m, nil
	}

	if m.overlay == overlayHelp {
		if key.Matches(msg, m.keyMap.Help) {
			m.closeOverlay()
		}
		return m, nil
	}

	// Search query entry phase.
	if m.overlay == overlaySearch && m.picker == nil {
		if key.Matches(msg, m.keyMap.Submit) {
			query := strings.TrimSpace(m.searchInput.Value())
			if query == "" {
				return m, nil
			}
			return m, searchCmd(m.idx, query)
		}
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}

	if m.picker == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keyMap.ScrollUp):
		m.picker.MoveUp()
	case key.Matches(msg, m.keyMap.ScrollDown):
		m.picker.MoveDown()
	case msg.String() == " ":
		if m.overlay == overlayTools {
			return m, m.toggleSelectedTool()
		}
	case key.Matches(msg, m.keyMap.Submit):
		return m.activateSelection()
	}
	return m, nil
}

// activateSelection applies the picker's highlighted row.
func (m Model) activateSelection() (tea.Model, tea.Cmd) {
	item, ok := m.picker.Selected()
	if !ok || item.Disabled {
		return m, nil
	}
	switch m.overlay {
	case overlayThreads, overlaySearch:
		return m, switchThreadCmd(m.sess, item.ID)
	case overlayModels:
		return m, selectModelCmd(m.sess, m.cfg.Paths.ModelsFile, item.ID)
	case overlayTools:
		return m, m.toggleSelectedTool()
	}
	return m, nil
}

// toggleSelectedTool flips the highlighted tool server.
func (m Model) toggleSelectedTool() tea.Cmd {
	item, ok := m.picker.Selected()
	if !ok {
		return nil
	}
	return toggleToolCmd(m.sess, m.cfg.Paths.ToolsFile, item.ID, !m.sess.ToolEnabled(item.ID))
}

// =============================================================================
// OVERLAY OPENERS
// =============================================================================

func (m *Model) openModelPicker() {
	m.openPicker(overlayModels, "Models", modelItems(m.sess.Models().Descriptors(), m.sess.CurrentModelID()))
}

func (m *Model) openToolPicker() {
	m.openPicker(overlayTools, "Tool Servers (space toggles)", toolItems(m.sess.Tools().Descriptors(), m.sess.ToolEnabled))
}

func (m *Model) openSearch() {
	m.overlay = overlaySearch
	m.picker = nil
	m.input.Blur()
	m.searchInput.SetValue("")
	m.searchInput.Focus()
}

// =============================================================================
// SUBMIT
// =============================================================================

// submitInput sends the input line: slash commands dispatch locally,
// anything else starts a turn.
func (m Model) submitInput() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.state == StateStreaming {
		return m, nil
	}
	m.input.SetValue("")

	if strings.HasPrefix(text, "/") {
		return m.dispatchSlash(text)
	}
	return m.startTurn(text)
}

// startTurn kicks off a streaming turn for text.
func (m Model) startTurn(text string) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelMgr.set(cancel)

	// Show the user message immediately; the durable append happens in
	// the session before the adapter is invoked, and the reload on turn
	// completion replaces this display copy with the stored one.
	if m.thread != nil {
		m.thread.Append(model.NewUserMessage(text))
		m.updateViewport(true)
	}

	m.runner.Run(ctx, text)
	return m, nil
}
