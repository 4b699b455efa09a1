// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the chat interface key bindings.
type KeyMap struct {
	Submit       key.Binding
	Cancel       key.Binding
	Quit         key.Binding
	NewThread    key.Binding
	Threads      key.Binding
	Models       key.Binding
	ToolServers  key.Binding
	Search       key.Binding
	Help         key.Binding
	ScrollUp     key.Binding
	ScrollDown   key.Binding
	PageUp       key.Binding
	PageDown     key.Binding
	ScrollTop    key.Binding
	ScrollBottom key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send message"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel / close overlay"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		NewThread: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new thread"),
		),
		Threads: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "thread picker"),
		),
		Models: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "model picker"),
		),
		ToolServers: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("ctrl+g", "tool servers"),
		),
		Search: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("ctrl+f", "search threads"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("ctrl+h", "toggle help"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "scroll down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "page down"),
		),
		ScrollTop: key.NewBinding(
			key.WithKeys("home"),
			key.WithHelp("home", "scroll to top"),
		),
		ScrollBottom: key.NewBinding(
			key.WithKeys("end"),
			key.WithHelp("end", "scroll to bottom"),
		),
	}
}

// HelpItem is one row in the help overlay.
type HelpItem struct {
	Key  string
	Desc string
}

// helpItems returns the rows for the help overlay, in display order.
func helpItems() []HelpItem {
	return []HelpItem{
		{"enter", "send message"},
		{"esc", "cancel stream / close overlay"},
		{"ctrl+n", "new thread"},
		{"ctrl+t", "thread picker"},
		{"ctrl+o", "model picker"},
		{"ctrl+g", "tool servers"},
		{"ctrl+f", "search threads"},
		{"↑/↓ pgup/pgdn", "scroll history"},
		{"ctrl+h", "toggle this help"},
		{"ctrl+c", "quit"},
	}
}

// slashHelpItems returns the slash command rows for the help overlay.
func slashHelpItems() []HelpItem {
	return []HelpItem{
		{"/new", "start a new thread"},
		{"/threads", "open the thread picker"},
		{"/model [id]", "show or switch model"},
		{"/tools", "open the tool server picker"},
		{"/search <q>", "search threads"},
		{"/export [md|json]", "export the current thread"},
		{"/delete", "delete the current thread"},
		{"/help", "show this help"},
		{"/quit", "exit agentchat"},
	}
}
