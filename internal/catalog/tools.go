// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog loads and validates the model and tool-server catalogs.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/buger/jsonparser"

	"github.com/jeranaias/agentchat-tui/internal/util"
)

// =============================================================================
// FILE SHAPE
// =============================================================================

// rawToolFile mirrors the ecosystem-standard mcp.json layout: a single
// "mcpServers" object keyed by server name. Unknown fields are ignored so
// files shared with other MCP clients keep working.
type rawToolFile struct {
	MCPServers map[string]rawToolEntry `json:"mcpServers"`
}

type rawToolEntry struct {
	Command  string            `json:"command"`
	Args     []string          `json:"args"`
	Env      map[string]string `json:"env"`
	URL      string            `json:"url"`
	Headers  map[string]string `json:"headers"`
	Disabled bool              `json:"disabled"`
}

func (e rawToolEntry) toDescriptor(id string) ToolServerDescriptor {
	return ToolServerDescriptor{
		ID:       id,
		Command:  e.Command,
		Args:     e.Args,
		Env:      e.Env,
		URL:      e.URL,
		Headers:  e.Headers,
		Disabled: e.Disabled,
	}
}

// =============================================================================
// LOADING
// =============================================================================

// LoadTools loads the tool server catalog from an mcp.json file. The file
// is always JSON; the mcpServers shape is shared with other MCP clients.
// An empty catalog is valid and means chat runs without tools.
//
// Returns ErrCatalogNotFound when the file does not exist, or
// ValidateErrors naming each offending field when it is malformed.
func LoadTools(path string) (*ToolCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrCatalogNotFound)
		}
		return nil, fmt.Errorf("failed to read tool catalog: %w", err)
	}

	var raw rawToolFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	order, err := toolOrderJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return buildToolCatalog(raw, order)
}

// toolOrderJSON extracts server names in document order from the raw
// bytes, since encoding/json loses object order.
func toolOrderJSON(data []byte) ([]string, error) {
	var order []string
	err := jsonparser.ObjectEach(data, func(key []byte, _ []byte, _ jsonparser.ValueType, _ int) error {
		order = append(order, string(key))
		return nil
	}, "mcpServers")
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, err
	}
	return order, nil
}

// buildToolCatalog validates the raw file and assembles the catalog.
func buildToolCatalog(raw rawToolFile, order []string) (*ToolCatalog, error) {
	var errs ValidateErrors

	seen := make(map[string]bool, len(order))
	descriptors := make([]ToolServerDescriptor, 0, len(order))
	for _, id := range order {
		if id == "" {
			errs = append(errs, ValidationError{
				Field:   "mcpServers",
				Message: "server name must not be empty",
			})
			continue
		}
		if seen[id] {
			errs = append(errs, ValidationError{
				Field:   "mcpServers." + id,
				Message: "duplicate server name",
			})
			continue
		}
		seen[id] = true

		entry := raw.MCPServers[id]
		switch {
		case entry.Command == "" && entry.URL == "":
			errs = append(errs, ValidationError{
				Field:   "mcpServers." + id,
				Message: "either command or url is required",
			})
		case entry.Command != "" && entry.URL != "":
			errs = append(errs, ValidationError{
				Field:   "mcpServers." + id,
				Message: "command and url are mutually exclusive",
			})
		}
		if entry.URL != "" {
			if err := validateEndpoint(entry.URL); err != nil {
				errs = append(errs, ValidationError{
					Field:   "mcpServers." + id + ".url",
					Message: err.Error(),
				})
			}
		} else if len(entry.Headers) > 0 {
			errs = append(errs, ValidationError{
				Field:   "mcpServers." + id + ".headers",
				Message: "headers require a url transport",
			})
		}
		descriptors = append(descriptors, entry.toDescriptor(id))
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return NewToolCatalog(descriptors), nil
}

// validateEndpoint checks that a server URL is well formed and uses an
// http scheme.
func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got '%s'", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url is missing a host")
	}
	return nil
}

// =============================================================================
// WRITE-BACK
// =============================================================================

// SaveToolDisabled persists a server's disabled flag to the catalog file.
// The edit is surgical: only the one flag changes, so key order and
// unrelated fields survive. Fails if id is not defined in the catalog.
func SaveToolDisabled(path, id string, disabled bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, ErrCatalogNotFound)
		}
		return fmt.Errorf("failed to read tool catalog: %w", err)
	}

	if _, _, _, err := jsonparser.Get(data, "mcpServers", id); err != nil {
		return fmt.Errorf("tool server %q is not defined in %s", id, path)
	}

	updated, err := jsonparser.Set(data, []byte(strconv.FormatBool(disabled)), "mcpServers", id, "disabled")
	if err != nil {
		return fmt.Errorf("failed to update disabled flag: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(path, updated, 0600); err != nil {
		return fmt.Errorf("failed to write tool catalog: %w", err)
	}
	return nil
}

// =============================================================================
// TEMPLATE
// =============================================================================

// SECURITY: Template servers ship disabled so a first run never spawns
// processes the user has not opted into.
const defaultToolsJSON = `{
  "mcpServers": {
    "filesystem": {
      "command": "npx",
      "args": ["-y", "@modelcontextprotocol/server-filesystem", "."],
      "disabled": true
    },
    "fetch": {
      "command": "uvx",
      "args": ["mcp-server-fetch"],
      "disabled": true
    }
  }
}
`

// WriteDefaultTools writes the sample tool catalog on first run.
// Existing files are never overwritten.
func WriteDefaultTools(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := util.AtomicWriteFile(path, []byte(defaultToolsJSON), 0600); err != nil {
		return fmt.Errorf("failed to write default tool catalog: %w", err)
	}
	return nil
}
