// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strconv"
	"strings"

	"github.com/jeranaias/agentchat-tui/internal/catalog"
	"github.com/jeranaias/agentchat-tui/internal/index"
	"github.com/jeranaias/agentchat-tui/internal/model"
	"github.com/jeranaias/agentchat-tui/internal/ui/components"
)

// =============================================================================
// VIEWPORT CONTENT
// =============================================================================

// updateViewport rebuilds the conversation view from the display copy of
// the thread plus the in-flight streaming text.
func (m *Model) updateViewport(scrollToBottom bool) {
	var sections []string

	if m.thread != nil {
		for i := range m.thread.Messages {
			msg := &m.thread.Messages[i]
			if msg.Role == model.RoleSystem {
				continue
			}
			bubble := components.NewMessageBubble(msg, m.theme, m.markdown)
			bubble.SetWidth(m.viewport.Width)
			bubble.SetShowTimestamp(m.cfg.UI.ShowTimestamps)
			bubble.SetShowReasoning(m.cfg.UI.ShowReasoning)
			sections = append(sections, bubble.View())
		}
	}

	if m.streamText != "" {
		live := model.NewAssistantMessage(m.streamText)
		bubble := components.NewMessageBubble(&live, m.theme, m.markdown)
		bubble.SetWidth(m.viewport.Width)
		bubble.SetStreaming(true)
		sections = append(sections, bubble.View())
	}

	m.viewport.SetContent(strings.Join(sections, "\n\n"))
	if scrollToBottom {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// OVERLAYS
// =============================================================================

// openPicker replaces the current overlay with a picker.
func (m *Model) openPicker(kind overlayKind, title string, items []components.PickerItem) {
	m.overlay = kind
	m.picker = components.NewPicker(title, items, m.theme)
	m.picker.SetSize(m.width, m.height)
	m.input.Blur()
}

// closeOverlay returns to the conversation.
func (m *Model) closeOverlay() {
	m.overlay = overlayNone
	m.picker = nil
	m.searchInput.Blur()
	m.searchInput.SetValue("")
	if m.state == StateReady {
		m.input.Focus()
	}
}

// =============================================================================
// PICKER ITEMS
// =============================================================================

// threadItems builds thread picker rows, newest first per store order.
func threadItems(threads []model.ThreadMeta, currentID string) []components.PickerItem {
	items := make([]components.PickerItem, 0, len(threads))
	for _, t := range threads {
		label := t.Title
		if t.ID == currentID {
			label += " (current)"
		}
		desc := strconv.Itoa(t.MessageCount) + " messages · " + model.FormatRelativeTime(t.UpdatedAt)
		if t.Preview != "" {
			desc += " · " + t.Preview
		}
		items = append(items, components.PickerItem{
			ID:    t.ID,
			Label: label,
			Desc:  desc,
		})
	}
	return items
}

// modelItems builds model picker rows. Disabled models stay listed but
// cannot be chosen from the picker.
func modelItems(descs []catalog.ModelDescriptor, currentID string) []components.PickerItem {
	items := make([]components.PickerItem, 0, len(descs))
	for _, d := range descs {
		label := d.DisplayName
		if d.ID == currentID {
			label += " (current)"
		}
		desc := d.Model
		if d.SupportsTools {
			desc += " · tools"
		}
		if d.SupportsVision {
			desc += " · vision"
		}
		items = append(items, components.PickerItem{
			ID:       d.ID,
			Label:    label,
			Desc:     desc,
			Disabled: !d.Enabled,
		})
	}
	return items
}

// toolItems builds checkbox rows for the tool server picker. Enabled
// state comes from the session, which may have toggles the catalog file
// does not.
func toolItems(descs []catalog.ToolServerDescriptor, enabledFn func(id string) bool) []components.PickerItem {
	items := make([]components.PickerItem, 0, len(descs))
	for _, d := range descs {
		var desc string
		if d.URL != "" {
			desc = d.URL
		} else {
			desc = strings.TrimSpace(d.Command + " " + strings.Join(d.Args, " "))
		}
		items = append(items, components.PickerItem{
			ID:       d.ID,
			Label:    d.ID,
			Desc:     desc,
			HasCheck: true,
			Checked:  enabledFn(d.ID),
		})
	}
	return items
}

// searchItems builds result rows from ranked index hits.
func searchItems(results []index.SearchResult) []components.PickerItem {
	items := make([]components.PickerItem, 0, len(results))
	for _, r := range results {
		items = append(items, components.PickerItem{
			ID:    r.ID,
			Label: r.Title,
			Desc:  r.Snippet,
		})
	}
	return items
}
