// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agentchat-tui/internal/ui/styles"
)

// =============================================================================
// THINKING SPINNER
// =============================================================================

// Spinner shows activity while the adapter has not produced output yet
// (waiting for the first token, or between tool rounds).
type Spinner struct {
	model   spinner.Model
	theme   *styles.Theme
	message string
	detail  string
	active  bool
	started time.Time
}

// NewSpinner creates an inactive spinner.
func NewSpinner(theme *styles.Theme) Spinner {
	sp := spinner.New()
	// ASCII frames so the spinner works on terminals without wide glyphs.
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 30,
	}
	sp.Style = theme.Spinner
	return Spinner{
		model:   sp,
		theme:   theme,
		message: "Thinking",
	}
}

// Start activates the spinner and returns its tick command.
func (s *Spinner) Start() tea.Cmd {
	s.active = true
	s.started = time.Now()
	return s.model.Tick
}

// Stop deactivates the spinner.
func (s *Spinner) Stop() {
	s.active = false
	s.detail = ""
}

// SetMessage sets the main label.
func (s *Spinner) SetMessage(msg string) {
	s.message = msg
}

// SetDetail sets a secondary label, such as the tool currently running.
func (s *Spinner) SetDetail(detail string) {
	s.detail = detail
}

// IsActive reports whether the spinner is running.
func (s *Spinner) IsActive() bool {
	return s.active
}

// Update advances the animation.
func (s Spinner) Update(msg tea.Msg) (Spinner, tea.Cmd) {
	if !s.active {
		return s, nil
	}
	var cmd tea.Cmd
	s.model, cmd = s.model.Update(msg)
	return s, cmd
}

// View renders the spinner line, empty when inactive.
func (s Spinner) View() string {
	if !s.active {
		return ""
	}
	out := s.model.View() + " " + s.theme.ThinkingText.Render(s.message)
	if s.detail != "" {
		out += " " + s.theme.Timestamp.Render("("+s.detail+")")
	}
	elapsed := time.Since(s.started)
	if elapsed > 2*time.Second {
		out += " " + s.theme.Timestamp.Render(formatElapsed(elapsed))
	}
	return out
}

// formatElapsed renders a duration as "3s" / "1m05s".
func formatElapsed(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 60 {
		return toStr(secs) + "s"
	}
	rem := secs % 60
	pad := ""
	if rem < 10 {
		pad = "0"
	}
	return toStr(secs/60) + "m" + pad + toStr(rem) + "s"
}
