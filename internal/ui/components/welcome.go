// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/agentchat-tui/internal/ui/styles"
)

// =============================================================================
// WELCOME / EMPTY STATE
// =============================================================================

// Welcome renders the empty-thread state: a logo, the active model, and
// quick-start hints.
type Welcome struct {
	theme   *styles.Theme
	version string
	modelID string
	tools   int
	width   int
	height  int
}

// NewWelcome creates a welcome screen.
func NewWelcome(theme *styles.Theme) Welcome {
	return Welcome{theme: theme, width: 80, height: 24}
}

// SetVersion sets the displayed version.
func (w *Welcome) SetVersion(version string) {
	w.version = version
}

// SetModel sets the displayed model ID.
func (w *Welcome) SetModel(id string) {
	w.modelID = id
}

// SetToolCount sets the number of connected tool servers.
func (w *Welcome) SetToolCount(n int) {
	w.tools = n
}

// SetSize sets the render area.
func (w *Welcome) SetSize(width, height int) {
	w.width = width
	w.height = height
}

// View renders the welcome screen centered in the available area.
func (w Welcome) View() string {
	var lines []string

	logo := w.theme.HeaderTitle.Render("agentchat")
	if w.version != "" {
		logo += " " + w.theme.HeaderSubtitle.Render("v"+w.version)
	}
	lines = append(lines, logo, "")

	if w.modelID != "" {
		lines = append(lines, w.theme.HeaderSubtitle.Render("model: "+w.modelID))
	}
	if w.tools > 0 {
		lines = append(lines, w.theme.HeaderSubtitle.Render(
			toStr(w.tools)+" tool "+plural(w.tools, "server", "servers")+" connected"))
	}
	lines = append(lines, "")

	key := w.theme.ShortcutKey.Render
	desc := w.theme.ShortcutDesc.Render
	lines = append(lines,
		desc("Type a message and press ")+key("enter")+desc(" to start"),
		key("ctrl+t")+desc(" threads   ")+key("ctrl+o")+desc(" models   ")+key("/help")+desc(" commands"),
	)

	content := strings.Join(lines, "\n")
	return lipgloss.Place(w.width, w.height, lipgloss.Center, lipgloss.Center, content)
}
