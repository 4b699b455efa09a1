// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

// Markdown renders assistant prose with glamour. Renderers are cached per
// wrap width because constructing one walks the full style tree.
type Markdown struct {
	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
	dark      bool
}

// NewMarkdown creates a markdown renderer for the given background.
func NewMarkdown(dark bool) *Markdown {
	return &Markdown{
		renderers: make(map[int]*glamour.TermRenderer),
		dark:      dark,
	}
}

// Render renders markdown wrapped to width. On renderer failure the raw
// text is returned so a glamour problem never blanks a message.
func (m *Markdown) Render(text string, width int) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	if width < 20 {
		width = 20
	}

	r, err := m.renderer(width)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	// Glamour pads with a leading and trailing blank line.
	return strings.Trim(out, "\n")
}

func (m *Markdown) renderer(width int) (*glamour.TermRenderer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.renderers[width]; ok {
		return r, nil
	}

	style := "light"
	if m.dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return nil, err
	}
	m.renderers[width] = r
	return r, nil
}
