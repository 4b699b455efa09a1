// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/agentchat-tui/internal/ui/styles"
	"github.com/jeranaias/agentchat-tui/internal/util"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// StatusBar renders the bottom summary line: current model, enabled tool
// servers, current thread, and keyboard hints.
type StatusBar struct {
	theme *styles.Theme
	width int

	modelID      string
	modelEnabled bool
	toolCount    int
	threadTitle  string
	messageCount int
	streaming    bool
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		theme:        theme,
		width:        80,
		modelEnabled: true,
	}
}

// SetWidth sets the render width.
func (s *StatusBar) SetWidth(width int) {
	s.width = width
}

// SetModel sets the displayed model and whether the catalog marks it enabled.
func (s *StatusBar) SetModel(id string, enabled bool) {
	s.modelID = id
	s.modelEnabled = enabled
}

// SetToolCount sets the number of enabled tool servers.
func (s *StatusBar) SetToolCount(n int) {
	s.toolCount = n
}

// SetThread sets the current thread summary.
func (s *StatusBar) SetThread(title string, messageCount int) {
	s.threadTitle = title
	s.messageCount = messageCount
}

// SetStreaming toggles the streaming indicator.
func (s *StatusBar) SetStreaming(streaming bool) {
	s.streaming = streaming
}

// View renders the status bar.
func (s *StatusBar) View() string {
	var left []string

	modelLabel := s.modelID
	if modelLabel == "" {
		modelLabel = "no model"
	}
	if !s.modelEnabled {
		modelLabel += " (disabled)"
	}
	left = append(left, s.theme.StatusModel.Render(modelLabel))

	if s.toolCount > 0 {
		left = append(left, s.theme.StatusTools.Render(
			toStr(s.toolCount)+" "+plural(s.toolCount, "tool", "tools")))
	}

	if s.threadTitle != "" {
		title := util.TruncateWidth(s.threadTitle, 30)
		left = append(left, s.theme.StatusThread.Render(
			title+" · "+toStr(s.messageCount)+" msg"))
	}

	leftStr := strings.Join(left, s.theme.ShortcutDesc.Render(" • "))

	right := s.renderHints()
	gap := s.width - lipgloss.Width(leftStr) - lipgloss.Width(right) - 2
	if gap < 1 {
		return s.theme.StatusBar.Width(s.width).Render(leftStr)
	}

	return s.theme.StatusBar.Width(s.width).
		Render(leftStr + strings.Repeat(" ", gap) + right)
}

func (s *StatusBar) renderHints() string {
	key := s.theme.ShortcutKey.Render
	desc := s.theme.ShortcutDesc.Render

	if s.streaming {
		return key("esc") + desc(" cancel")
	}
	if s.theme.GetLayoutMode() == styles.LayoutNarrow {
		return key("^h") + desc(" help")
	}
	return key("^t") + desc(" threads ") +
		key("^o") + desc(" models ") +
		key("^h") + desc(" help")
}
