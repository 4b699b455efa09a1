// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agentchat-tui/internal/session"
	"github.com/jeranaias/agentchat-tui/internal/storage"
)

// exportThreadCmd writes the current thread to a file in the working
// directory. Format is "md" or "json".
func exportThreadCmd(sess *session.Session, format string) tea.Cmd {
	return func() tea.Msg {
		thread, err := sess.CurrentThread()
		if err != nil {
			return ExportDoneMsg{Err: err}
		}
		if thread == nil {
			return ExportDoneMsg{Err: storage.ErrThreadNotFound}
		}

		var data []byte
		switch format {
		case "json":
			data, err = storage.ExportJSON(thread)
			if err != nil {
				return ExportDoneMsg{Err: err}
			}
		default:
			data = []byte(storage.ExportMarkdown(thread))
		}

		path := filepath.Join(".", "thread-"+thread.ID+"."+format)
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return ExportDoneMsg{Err: err}
		}
		return ExportDoneMsg{Path: path}
	}
}
