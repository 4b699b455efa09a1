// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full chat interface.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	switch m.overlay {
	case overlayNone:
		b.WriteString(m.renderConversation())
	case overlayHelp:
		b.WriteString(m.renderHelp())
	case overlaySearch:
		if m.picker == nil {
			b.WriteString(m.renderSearchEntry())
		} else {
			b.WriteString(m.renderPickerArea())
		}
	default:
		b.WriteString(m.renderPickerArea())
	}

	b.WriteString("\n")
	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(m.statusBar.View())
	return b.String()
}

// renderHeader is the one-line top bar.
func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("agentchat")
	sub := ""
	if m.thread != nil {
		sub = " " + m.theme.HeaderSubtitle.Render(m.thread.GetTitle())
	}
	return m.theme.Header.Width(m.width).Render(title + sub)
}

// renderConversation shows the viewport (or the welcome screen for an
// empty session) plus the activity line.
func (m Model) renderConversation() string {
	var body string
	if m.thread == nil || (len(m.thread.Messages) == 0 && m.streamText == "") {
		body = m.welcome.View()
	} else {
		body = m.viewport.View()
	}

	activity := m.renderActivity()
	if activity == "" {
		return body
	}
	return body + "\n" + activity
}

// renderActivity is the line between history and input: error banner,
// spinner, or transient status, in that priority.
func (m Model) renderActivity() string {
	if m.banner.Active() {
		return m.banner.View()
	}
	if m.spin.IsActive() {
		return " " + m.spin.View()
	}
	if m.statusLine != "" {
		return " " + m.theme.Timestamp.Render(m.statusLine)
	}
	return ""
}

// renderInput is the prompt line.
func (m Model) renderInput() string {
	if m.state == StateStreaming {
		return m.theme.InputContainer.Width(m.width).Render(
			m.theme.Timestamp.Render("streaming... esc to cancel"))
	}
	return m.theme.InputContainer.Width(m.width).Render(m.input.View())
}

// renderPickerArea centers the open picker in the conversation area.
func (m Model) renderPickerArea() string {
	if m.picker == nil {
		return ""
	}
	return lipgloss.Place(m.width, m.viewportHeight(),
		lipgloss.Center, lipgloss.Center, m.picker.View())
}

// renderSearchEntry shows the query prompt for the search overlay.
func (m Model) renderSearchEntry() string {
	box := m.theme.PickerBox.Render(
		m.theme.PickerTitle.Render("Search Threads") + "\n\n" +
			m.searchInput.View() + "\n\n" +
			m.theme.PickerDesc.Render("enter to search · esc to close"))
	return lipgloss.Place(m.width, m.viewportHeight(),
		lipgloss.Center, lipgloss.Center, box)
}

// renderHelp shows key bindings and slash commands side by side.
func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(m.theme.HelpTitle.Render("Help"))
	b.WriteString("\n\n")
	b.WriteString(m.theme.HelpSection.Render("Keys"))
	b.WriteString("\n")
	for _, item := range helpItems() {
		b.WriteString("  ")
		b.WriteString(m.theme.HelpKey.Render(padRight(item.Key, 16)))
		b.WriteString(m.theme.HelpDesc.Render(item.Desc))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.theme.HelpSection.Render("Commands"))
	b.WriteString("\n")
	for _, item := range slashHelpItems() {
		b.WriteString("  ")
		b.WriteString(m.theme.HelpKey.Render(padRight(item.Key, 16)))
		b.WriteString(m.theme.HelpDesc.Render(item.Desc))
		b.WriteString("\n")
	}
	box := m.theme.HelpBox.Render(strings.TrimRight(b.String(), "\n"))
	return lipgloss.Place(m.width, m.viewportHeight(),
		lipgloss.Center, lipgloss.Center, box)
}

// padRight pads s with spaces to at least width runes.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-len(s))
}
