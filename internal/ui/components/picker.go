// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/jeranaias/agentchat-tui/internal/ui/styles"
	"github.com/jeranaias/agentchat-tui/internal/util"
)

// =============================================================================
// SELECTION PICKER
// =============================================================================

// PickerItem is one selectable row in a Picker.
type PickerItem struct {
	// ID identifies the item to the caller on selection.
	ID string

	// Label is the primary display text.
	Label string

	// Desc is secondary text rendered dimmed after the label.
	Desc string

	// Disabled marks catalog entries with enabled=false. They are still
	// selectable; the styling is the signal.
	Disabled bool

	// HasCheck and Checked render a checkbox, used by the tool picker.
	HasCheck bool
	Checked  bool
}

// Picker is a modal selection overlay used for threads, models, and tool
// servers. Navigation state lives here; what selection means is the
// caller's concern.
type Picker struct {
	theme *styles.Theme

	title  string
	items  []PickerItem
	cursor int
	offset int

	width   int
	maxRows int
}

// NewPicker creates a picker with a title and items.
func NewPicker(title string, items []PickerItem, theme *styles.Theme) *Picker {
	return &Picker{
		theme:   theme,
		title:   title,
		items:   items,
		width:   60,
		maxRows: 12,
	}
}

// SetSize bounds the picker to the terminal.
func (p *Picker) SetSize(width, height int) {
	if width < 70 {
		p.width = width - 6
	} else {
		p.width = 60
	}
	if p.width < 24 {
		p.width = 24
	}
	rows := height - 8
	if rows < 3 {
		rows = 3
	}
	if rows < p.maxRows {
		p.maxRows = rows
	}
}

// SetItems replaces the items, clamping the cursor.
func (p *Picker) SetItems(items []PickerItem) {
	p.items = items
	if p.cursor >= len(items) {
		p.cursor = len(items) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
	p.scroll()
}

// Len returns the number of items.
func (p *Picker) Len() int {
	return len(p.items)
}

// MoveUp moves the cursor up one row.
func (p *Picker) MoveUp() {
	if p.cursor > 0 {
		p.cursor--
		p.scroll()
	}
}

// MoveDown moves the cursor down one row.
func (p *Picker) MoveDown() {
	if p.cursor < len(p.items)-1 {
		p.cursor++
		p.scroll()
	}
}

// Selected returns the item under the cursor.
func (p *Picker) Selected() (PickerItem, bool) {
	if len(p.items) == 0 {
		return PickerItem{}, false
	}
	return p.items[p.cursor], true
}

// SetChecked updates the checkbox of the item with the given ID.
func (p *Picker) SetChecked(id string, checked bool) {
	for i := range p.items {
		if p.items[i].ID == id {
			p.items[i].Checked = checked
			return
		}
	}
}

// scroll keeps the cursor inside the visible window.
func (p *Picker) scroll() {
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+p.maxRows {
		p.offset = p.cursor - p.maxRows + 1
	}
}

// View renders the picker box.
func (p *Picker) View() string {
	var rows []string
	rows = append(rows, p.theme.PickerTitle.Render(p.title))

	if len(p.items) == 0 {
		rows = append(rows, p.theme.PickerDesc.Render("nothing here yet"))
	}

	end := p.offset + p.maxRows
	if end > len(p.items) {
		end = len(p.items)
	}

	for i := p.offset; i < end; i++ {
		rows = append(rows, p.renderRow(i))
	}

	if len(p.items) > p.maxRows {
		rows = append(rows, p.theme.PickerDesc.Render(
			toStr(p.cursor+1)+"/"+toStr(len(p.items))))
	}

	return p.theme.PickerBox.Width(p.width).Render(strings.Join(rows, "\n"))
}

func (p *Picker) renderRow(i int) string {
	item := p.items[i]

	prefix := "  "
	if i == p.cursor {
		prefix = "> "
	}
	if item.HasCheck {
		if item.Checked {
			prefix += "[x] "
		} else {
			prefix += "[ ] "
		}
	}

	label := item.Label
	maxLabel := p.width - util.StringWidth(prefix) - 6
	if maxLabel > 0 {
		label = util.TruncateWidth(label, maxLabel)
	}

	line := prefix + label
	if item.Desc != "" {
		descWidth := p.width - util.StringWidth(line) - 6
		if descWidth > 8 {
			line += "  " + p.theme.PickerDesc.Render(util.TruncateWidth(item.Desc, descWidth))
		}
	}

	switch {
	case i == p.cursor:
		return p.theme.PickerSelected.Width(p.width - 4).Render(line)
	case item.Disabled:
		return p.theme.PickerDisabled.Render(line)
	default:
		return p.theme.PickerItem.Render(line)
	}
}
