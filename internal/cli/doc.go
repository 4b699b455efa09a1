// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the plain-terminal mode of agentchat: a liner
// based REPL over the same session layer the TUI uses, for terminals
// (or users) that cannot run the full-screen interface.
//
// # Key Types
//
//   - REPL: the interactive loop with input history and slash commands
//
// # Usage
//
// Build the session exactly as for the TUI, then:
//
//	repl := cli.NewREPL(sess, idx, cfg, version)
//	defer repl.Close()
//	return repl.Run()
//
// Responses stream token by token on a pipe, and render as markdown at
// turn end when stdout is a TTY.
package cli
