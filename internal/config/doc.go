// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for agentchat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - RuntimeConfig: Agent runtime endpoint and timeouts
//   - PathsConfig: Data directory layout (catalogs, threads, index)
//   - UIConfig: Theme and rendering preferences
//   - LimitsConfig: Thread count and tool-round caps
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (AGENTCHAT_*)
//   - ~/.agentchat/config.toml
//   - ~/.agentchat/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	runtimeURL := cfg.Runtime.URL
//	threadsDir := cfg.Paths.ThreadsDir
package config
