// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog loads and validates the model and tool-server catalogs.
//
// Two files under ~/.agentchat describe what the app can talk to:
// models.toml (with a models.json fallback) lists the models the picker
// offers, and mcp.json lists MCP tool servers in the ecosystem-standard
// mcpServers shape. Both are loaded once at startup into immutable,
// ordered catalogs; declaration order in the file is display order.
//
// # Key Types
//
//   - ModelCatalog / ToolCatalog: validated, ordered descriptor sets
//   - ModelDescriptor: one model entry (runtime name, capabilities, sampling)
//   - ToolServerDescriptor: one MCP server (stdio command or HTTP endpoint)
//   - ValidationError / ValidateErrors: per-field failures with dotted paths
//
// # Usage
//
//	models, err := catalog.LoadModels(filepath.Join(dir, "models.toml"))
//	if errors.Is(err, catalog.ErrCatalogNotFound) {
//		catalog.WriteDefaultModels(filepath.Join(dir, "models.toml"))
//		models, err = catalog.LoadModels(filepath.Join(dir, "models.toml"))
//	}
//	tools, err := catalog.LoadTools(filepath.Join(dir, "mcp.json"))
//
// The sidebar write-backs (SaveModelSelection, SaveToolDisabled) edit the
// files surgically and atomically, preserving comments and key order, so
// a catalog file stays hand-editable after the app has touched it.
package catalog
