// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"encoding/json"
	"strings"

	"github.com/jeranaias/agentchat-tui/internal/model"
	"github.com/jeranaias/agentchat-tui/internal/ui/styles"
	"github.com/jeranaias/agentchat-tui/internal/util"
)

// toolPreviewLines caps how many result lines show before folding.
const toolPreviewLines = 6

// RenderToolCall renders an announced tool invocation.
func RenderToolCall(call *model.ToolCall, theme *styles.Theme, width int) string {
	name := theme.RoleLabel.Foreground(styles.Amber).Render("⚙ " + call.Name)

	args := formatArguments(call.Arguments)
	if args != "" {
		args = theme.Timestamp.Render(util.TruncateWidth(args, width-util.StringWidth(call.Name)-4))
		return name + " " + args
	}
	return name
}

// RenderToolResult renders a completed tool invocation, folded past
// toolPreviewLines so a verbose server does not swamp the history.
func RenderToolResult(result *model.ToolResult, theme *styles.Theme, width int) string {
	style := theme.ToolSuccess
	indicator := styles.StatusIndicators.Success
	if result.IsError {
		style = theme.ToolError
		indicator = styles.StatusIndicators.Error
	}

	header := theme.RoleLabel.Render(indicator + " " + result.Name)

	content := strings.TrimSpace(result.Content)
	lines := strings.Split(content, "\n")
	if len(lines) > toolPreviewLines {
		hidden := len(lines) - toolPreviewLines
		lines = append(lines[:toolPreviewLines],
			theme.Timestamp.Render("… "+toStr(hidden)+" more "+plural(hidden, "line", "lines")))
	}
	for i, line := range lines {
		lines[i] = util.TruncateWidth(line, width-2)
	}

	body := style.Width(width).Render(strings.Join(lines, "\n"))
	return header + "\n" + body
}

// formatArguments renders tool call arguments as compact JSON.
func formatArguments(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	data, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return string(data)
}
