// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides thread persistence for agentchat.
package storage

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jeranaias/agentchat-tui/internal/model"
)

// ExportMarkdown renders a thread as a Markdown formatted string.
// Includes thread metadata, timestamps, and all messages with role labels.
func ExportMarkdown(thread *model.Thread) string {
	var sb strings.Builder
	sb.WriteString("# " + thread.GetTitle() + "\n\n")
	sb.WriteString("Thread: " + thread.ID + "\n")
	sb.WriteString("Model: " + thread.Model + "\n")
	sb.WriteString("Created: " + thread.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range thread.Messages {
		sb.WriteString("**" + msg.Role.DisplayName() + "** (" + msg.CreatedAt.Format("15:04") + "):\n\n")

		if msg.Reasoning != "" {
			sb.WriteString("> " + strings.ReplaceAll(msg.Reasoning, "\n", "\n> ") + "\n\n")
		}

		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")

		for _, call := range msg.ToolCalls {
			sb.WriteString("- Tool call: `" + call.Name + "`\n")
		}
		if msg.ToolResult != nil {
			status := "ok"
			if msg.ToolResult.IsError {
				status = "error"
			}
			sb.WriteString("- Tool result (" + msg.ToolResult.Name + ", " + status + ")\n")
		}

		sb.WriteString("\n---\n\n")
	}

	return sb.String()
}

// ExportJSON renders a thread as pretty-printed JSON.
func ExportJSON(thread *model.Thread) ([]byte, error) {
	return json.MarshalIndent(thread, "", "  ")
}
