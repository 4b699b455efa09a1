// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mcp manages connections to external MCP tool servers.
//
// Servers come from the tool catalog: command entries get a stdio transport
// (the server runs as a child process), url entries get a streamable HTTP
// transport. The Manager performs the initialize handshake, caches each
// server's tool listing, and routes calls back by their namespaced name.
//
// # Key Types
//
//   - Manager: connection owner and tool call router
//   - ServerStatus: per-server connect outcome
//
// # Naming
//
// Tools are presented to the model as "server__tool" so one flat namespace
// can span many servers. Call splits on the first "__" to find the server.
//
// # Usage
//
//	manager := mcp.NewManager("agentchat", version)
//	defer manager.Close()
//
//	for _, st := range manager.Connect(ctx, toolCatalog.Descriptors()) {
//	    if st.Err != nil {
//	        log.Printf("MCP: server %s unavailable: %v", st.ID, st.Err)
//	    }
//	}
//
//	defs, _ := manager.Tools(ctx, toolCatalog.EnabledIDs())
//	result, err := manager.Call(ctx, "search__web", map[string]any{"query": "go"})
//
// # Reliability
//
// Connect collects per-server errors instead of failing as a whole: a chat
// session degrades to the servers that did come up. Calls are rate limited
// per server so a looping model cannot overwhelm a single child process.
package mcp
