// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the agentchat TUI.
//
// The package defines an adaptive color palette and a Theme that bundles
// every Lip Gloss style the chat interface uses. Colors are declared as
// AdaptiveColor pairs so the same theme works on light and dark terminals
// without a separate configuration step.
//
// # Key Types
//
//   - Theme: all styled components, built once at startup via NewTheme
//   - LayoutMode: responsive breakpoints derived from terminal width
//
// # Usage
//
//	theme := styles.NewTheme()
//	theme.SetSize(width, height)
//	header := theme.HeaderTitle.Render("agentchat")
//
// Render helpers (RenderSuccess, RenderError, ...) are for one-off status
// lines outside the themed TUI, such as REPL output.
package styles
