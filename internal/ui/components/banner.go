// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"errors"
	"strings"

	"github.com/jeranaias/agentchat-tui/internal/agent"
	"github.com/jeranaias/agentchat-tui/internal/session"
	"github.com/jeranaias/agentchat-tui/internal/storage"
	"github.com/jeranaias/agentchat-tui/internal/ui/styles"
)

// =============================================================================
// ERROR BANNER
// =============================================================================

// ErrorBanner renders a recoverable error with a hint for what to do next.
// Recoverable errors never crash the UI; they surface here and dismiss on
// the next keypress.
type ErrorBanner struct {
	theme *styles.Theme
	width int

	err   error
	title string
	hint  string
}

// NewErrorBanner creates an empty banner.
func NewErrorBanner(theme *styles.Theme) *ErrorBanner {
	return &ErrorBanner{theme: theme, width: 80}
}

// SetWidth sets the render width.
func (b *ErrorBanner) SetWidth(width int) {
	b.width = width
}

// SetError captures an error and classifies it for display.
func (b *ErrorBanner) SetError(err error) {
	b.err = err
	b.title, b.hint = classifyError(err)
}

// Clear dismisses the banner.
func (b *ErrorBanner) Clear() {
	b.err = nil
}

// Active reports whether an error is showing.
func (b *ErrorBanner) Active() bool {
	return b.err != nil
}

// View renders the banner, empty when no error is set.
func (b *ErrorBanner) View() string {
	if b.err == nil {
		return ""
	}

	var lines []string
	lines = append(lines, b.theme.ErrorTitle.Render(styles.StatusIndicators.Error+" "+b.title))
	lines = append(lines, b.theme.ErrorDetail.Render(b.err.Error()))
	if b.hint != "" {
		lines = append(lines, b.theme.ErrorHint.Render(b.hint))
	}

	width := b.width - 4
	if width < 20 {
		width = 20
	}
	return b.theme.ErrorBox.Width(width).Render(strings.Join(lines, "\n"))
}

// classifyError maps the error taxonomy to a banner title and a recovery
// hint. Unknown errors get a generic title rather than no banner.
func classifyError(err error) (title, hint string) {
	switch {
	case errors.Is(err, storage.ErrThreadNotFound):
		return "Thread not found", "It may have been deleted in another tab. Press ctrl+t to pick another."
	case errors.Is(err, session.ErrUnknownModel):
		return "Unknown model", "The model is not in the catalog. Press ctrl+o to pick one."
	case errors.Is(err, session.ErrUnknownTool):
		return "Unknown tool server", "The server is not in the catalog. Check mcp.json."
	case errors.Is(err, session.ErrTurnActive):
		return "Still responding", "Wait for the current response or press esc to cancel it."
	case errors.Is(err, agent.ErrRuntimeNotRunning):
		return "Runtime unreachable", "Start the agent runtime, then resend — your message is saved."
	case errors.Is(err, agent.ErrModelNotFound):
		return "Model not available", "The runtime does not have this model. Pull it or pick another."
	case errors.Is(err, agent.ErrStreamInterrupted):
		return "Response interrupted", "Resend to retry — your message is saved."
	default:
		var storeErr *storage.StoreError
		if errors.As(err, &storeErr) {
			return "Could not save", "The thread on disk is unchanged; retry is safe."
		}
		var clientErr *agent.ClientError
		if errors.As(err, &clientErr) {
			return "Runtime error", "Resend to retry — your message is saved."
		}
		return "Something went wrong", ""
	}
}
