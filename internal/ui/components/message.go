// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/agentchat-tui/internal/model"
	"github.com/jeranaias/agentchat-tui/internal/ui/styles"
	"github.com/jeranaias/agentchat-tui/internal/util"
)

// =============================================================================
// MESSAGE BUBBLE
// =============================================================================

// MessageBubble renders a single thread message with role-specific styling.
type MessageBubble struct {
	msg      *model.Message
	theme    *styles.Theme
	markdown *Markdown

	width          int
	isStreaming    bool
	showTimestamp  bool
	showReasoning  bool
}

// NewMessageBubble creates a bubble for one message.
func NewMessageBubble(msg *model.Message, theme *styles.Theme, markdown *Markdown) *MessageBubble {
	return &MessageBubble{
		msg:      msg,
		theme:    theme,
		markdown: markdown,
		width:    80,
	}
}

// SetWidth sets the render width.
func (b *MessageBubble) SetWidth(width int) {
	b.width = width
}

// SetStreaming marks this bubble as the one still receiving deltas; it
// gets a cursor instead of stats.
func (b *MessageBubble) SetStreaming(streaming bool) {
	b.isStreaming = streaming
}

// SetShowTimestamp toggles per-message timestamps.
func (b *MessageBubble) SetShowTimestamp(show bool) {
	b.showTimestamp = show
}

// SetShowReasoning toggles the collapsed reasoning section.
func (b *MessageBubble) SetShowReasoning(show bool) {
	b.showReasoning = show
}

// View renders the bubble.
func (b *MessageBubble) View() string {
	switch b.msg.Role {
	case model.RoleUser:
		return b.renderUser()
	case model.RoleAssistant:
		return b.renderAssistant()
	case model.RoleTool:
		return b.renderTool()
	default:
		return b.theme.Timestamp.Render(b.msg.Content)
	}
}

func (b *MessageBubble) renderUser() string {
	label := b.theme.RoleLabel.Foreground(styles.UserFg).Render("You")
	header := b.headerLine(label)

	content := wordWrap(b.msg.Content, b.contentWidth())
	body := b.theme.UserMessage.Width(b.contentWidth() + 2).Render(content)

	return header + "\n" + body
}

func (b *MessageBubble) renderAssistant() string {
	label := b.theme.RoleLabel.Foreground(styles.Purple).Render("Assistant")
	header := b.headerLine(label)

	var parts []string

	if b.showReasoning && b.msg.Reasoning != "" {
		reasoning := b.theme.Timestamp.Italic(true).
			Render(wordWrap(b.msg.Reasoning, b.contentWidth()))
		parts = append(parts, reasoning)
	}

	content := b.msg.Content
	if b.isStreaming {
		// No markdown pass mid-stream: a half-open fence or emphasis
		// marker would flicker as tokens arrive.
		content = ParseCodeBlocks(content, b.contentWidth())
		content += b.theme.StreamCursor.Render("▌")
	} else if b.markdown != nil {
		content = b.markdown.Render(content, b.contentWidth())
	}
	parts = append(parts, content)

	for i := range b.msg.ToolCalls {
		parts = append(parts, RenderToolCall(&b.msg.ToolCalls[i], b.theme, b.contentWidth()))
	}

	body := b.theme.AssistantMessage.Width(b.contentWidth() + 2).
		Render(strings.Join(parts, "\n"))

	out := header + "\n" + body
	if stats := b.renderStats(); stats != "" {
		out += "\n" + stats
	}
	return out
}

func (b *MessageBubble) renderTool() string {
	if b.msg.ToolResult == nil {
		return b.theme.ToolSuccess.Render(b.msg.Content)
	}
	return RenderToolResult(b.msg.ToolResult, b.theme, b.contentWidth())
}

// headerLine combines the role label with an optional timestamp.
func (b *MessageBubble) headerLine(label string) string {
	if !b.showTimestamp {
		return label
	}
	ts := b.theme.Timestamp.Render(formatTime(b.msg.CreatedAt))
	return lipgloss.JoinHorizontal(lipgloss.Bottom, label, " ", ts)
}

// renderStats renders the generation stats footer on completed assistant
// messages.
func (b *MessageBubble) renderStats() string {
	if b.isStreaming || b.msg.Stats == nil {
		return ""
	}
	return b.theme.Timestamp.Render("  " + b.msg.Stats.Format())
}

func (b *MessageBubble) contentWidth() int {
	w := b.width - 4
	if w < 20 {
		w = 20
	}
	return w
}

// =============================================================================
// HELPERS
// =============================================================================

// wordWrap wraps text to width, preserving existing line breaks. Words
// longer than the width are broken mid-word rather than overflowing.
func wordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		if util.StringWidth(line) <= width {
			out = append(out, line)
			continue
		}

		var current strings.Builder
		currentWidth := 0
		for _, word := range strings.Fields(line) {
			wordWidth := util.StringWidth(word)
			if currentWidth > 0 && currentWidth+1+wordWidth > width {
				out = append(out, current.String())
				current.Reset()
				currentWidth = 0
			}
			for wordWidth > width {
				head := util.TruncateWidth(word, width)
				head = strings.TrimSuffix(head, "...")
				out = append(out, head)
				word = word[len(head):]
				wordWidth = util.StringWidth(word)
			}
			if currentWidth > 0 {
				current.WriteByte(' ')
				currentWidth++
			}
			current.WriteString(word)
			currentWidth += wordWidth
		}
		if current.Len() > 0 || line == "" {
			out = append(out, current.String())
		}
	}
	return strings.Join(out, "\n")
}

// formatTime renders a message timestamp: time-only for today, date+time
// otherwise.
func formatTime(t time.Time) string {
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("Jan 2 15:04")
}
