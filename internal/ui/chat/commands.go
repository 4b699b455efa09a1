// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// dispatchSlash executes a slash command typed into the input line.
func (m Model) dispatchSlash(text string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "/new":
		return m, newThreadCmd(m.sess)

	case "/threads":
		return m, loadThreadsCmd(m.sess.Store())

	case "/model":
		if len(args) == 0 {
			m.openModelPicker()
			return m, nil
		}
		return m, selectModelCmd(m.sess, m.cfg.Paths.ModelsFile, args[0])

	case "/tools":
		m.openToolPicker()
		return m, nil

	case "/search":
		if len(args) == 0 {
			m.openSearch()
			return m, nil
		}
		m.openSearch()
		query := strings.Join(args, " ")
		m.searchInput.SetValue(query)
		return m, searchCmd(m.idx, query)

	case "/export":
		format := "md"
		if len(args) > 0 {
			format = strings.ToLower(args[0])
		}
		if format != "md" && format != "json" {
			m.statusLine = "usage: /export [md|json]"
			return m, statusExpireCmd()
		}
		if m.sess.CurrentThreadID() == "" {
			m.statusLine = "no thread to export"
			return m, statusExpireCmd()
		}
		return m, exportThreadCmd(m.sess, format)

	case "/delete":
		id := m.sess.CurrentThreadID()
		if id == "" {
			m.statusLine = "no thread to delete"
			return m, statusExpireCmd()
		}
		return m, deleteThreadCmd(m.sess.Store(), id)

	case "/help":
		m.overlay = overlayHelp
		m.input.Blur()
		return m, nil

	case "/quit", "/exit":
		return m, tea.Quit
	}

	m.statusLine = "unknown command: " + cmd
	return m, statusExpireCmd()
}
