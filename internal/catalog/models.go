// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog loads and validates the model and tool-server catalogs.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/buger/jsonparser"

	"github.com/jeranaias/agentchat-tui/internal/util"
)

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultTemperature applies when a model entry omits temperature.
	DefaultTemperature = 0.7

	// DefaultMaxTokens applies when a model entry omits max_tokens.
	DefaultMaxTokens = 4096
)

// =============================================================================
// FILE SHAPE
// =============================================================================

// rawModelFile mirrors the on-disk catalog: a top-level "select" naming the
// default model plus one [models.<id>] table per model. The same field names
// work for the TOML file and the JSON fallback.
type rawModelFile struct {
	Select string                   `toml:"select" json:"select"`
	Models map[string]rawModelEntry `toml:"models" json:"models"`
}

// rawModelEntry uses pointers for fields whose absence means "use the
// default", so that an explicit false or 0 survives decoding.
type rawModelEntry struct {
	DisplayName    string   `toml:"display_name" json:"display_name"`
	Model          string   `toml:"model" json:"model"`
	RuntimeURL     string   `toml:"runtime_url" json:"runtime_url"`
	SupportsTools  *bool    `toml:"supports_tools" json:"supports_tools"`
	SupportsVision *bool    `toml:"supports_vision" json:"supports_vision"`
	Enabled        *bool    `toml:"enabled" json:"enabled"`
	Temperature    *float64 `toml:"temperature" json:"temperature"`
	MaxTokens      int      `toml:"max_tokens" json:"max_tokens"`
	SystemPrompt   string   `toml:"system_prompt" json:"system_prompt"`
}

// toDescriptor resolves defaults and produces the immutable descriptor.
func (e rawModelEntry) toDescriptor(id string) ModelDescriptor {
	d := ModelDescriptor{
		ID:           id,
		DisplayName:  e.DisplayName,
		Model:        e.Model,
		RuntimeURL:   e.RuntimeURL,
		MaxTokens:    e.MaxTokens,
		SystemPrompt: e.SystemPrompt,
	}
	if d.DisplayName == "" {
		d.DisplayName = id
	}
	d.SupportsTools = e.SupportsTools == nil || *e.SupportsTools
	d.SupportsVision = e.SupportsVision != nil && *e.SupportsVision
	d.Enabled = e.Enabled == nil || *e.Enabled
	if e.Temperature != nil {
		d.Temperature = *e.Temperature
	} else {
		d.Temperature = DefaultTemperature
	}
	if d.MaxTokens == 0 {
		d.MaxTokens = DefaultMaxTokens
	}
	return d
}

// =============================================================================
// LOADING
// =============================================================================

// LoadModels loads the model catalog from path. Tries the path as given
// (TOML) first, then a .json sibling as fallback. Loading is one-shot at
// process start; the loader has no side effects beyond reading the file.
//
// Returns ErrCatalogNotFound when neither file exists, or ValidateErrors
// naming each offending field when the catalog is malformed.
func LoadModels(path string) (*ModelCatalog, error) {
	actual, err := resolveCatalogPath(path)
	if err != nil {
		return nil, err
	}
	return loadModelsFile(actual)
}

// resolveCatalogPath returns the first existing file among path and its
// .json sibling.
func resolveCatalogPath(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	jsonPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
	if jsonPath != path {
		if _, err := os.Stat(jsonPath); err == nil {
			return jsonPath, nil
		}
	}
	return "", fmt.Errorf("%s: %w", path, ErrCatalogNotFound)
}

func loadModelsFile(path string) (*ModelCatalog, error) {
	var raw rawModelFile
	var order []string

	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read model catalog: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		order, err = modelOrderJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		md, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		order = modelOrderTOML(md)
	}

	return buildModelCatalog(raw, order)
}

// modelOrderTOML extracts model ids in document order. MetaData.Keys
// reports every key as it appeared, so [models.x] and its fields all
// contribute a ("models", "x", ...) prefix; the first occurrence wins.
func modelOrderTOML(md toml.MetaData) []string {
	var order []string
	seen := make(map[string]bool)
	for _, key := range md.Keys() {
		if len(key) >= 2 && key[0] == "models" && !seen[key[1]] {
			seen[key[1]] = true
			order = append(order, key[1])
		}
	}
	return order
}

// modelOrderJSON extracts model ids in document order. encoding/json
// loses object order, so the order pass reads the raw bytes directly.
// Duplicate keys are kept here and rejected during validation.
func modelOrderJSON(data []byte) ([]string, error) {
	var order []string
	err := jsonparser.ObjectEach(data, func(key []byte, _ []byte, _ jsonparser.ValueType, _ int) error {
		order = append(order, string(key))
		return nil
	}, "models")
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, err
	}
	return order, nil
}

// buildModelCatalog validates the raw file and assembles the catalog.
func buildModelCatalog(raw rawModelFile, order []string) (*ModelCatalog, error) {
	var errs ValidateErrors

	if len(order) == 0 {
		errs = append(errs, ValidationError{
			Field:   "models",
			Message: "at least one model must be defined",
		})
		return nil, errs
	}

	seen := make(map[string]bool, len(order))
	descriptors := make([]ModelDescriptor, 0, len(order))
	for _, id := range order {
		if id == "" {
			errs = append(errs, ValidationError{
				Field:   "models",
				Message: "model id must not be empty",
			})
			continue
		}
		if seen[id] {
			errs = append(errs, ValidationError{
				Field:   "models." + id,
				Message: "duplicate model id",
			})
			continue
		}
		seen[id] = true

		entry := raw.Models[id]
		if entry.Model == "" {
			errs = append(errs, ValidationError{
				Field:   "models." + id + ".model",
				Message: "runtime model name must not be empty",
			})
		}
		if entry.Temperature != nil && (*entry.Temperature < 0 || *entry.Temperature > 2) {
			errs = append(errs, ValidationError{
				Field:   "models." + id + ".temperature",
				Message: fmt.Sprintf("must be between 0 and 2, got %g", *entry.Temperature),
			})
		}
		if entry.MaxTokens < 0 {
			errs = append(errs, ValidationError{
				Field:   "models." + id + ".max_tokens",
				Message: "must not be negative",
			})
		}
		descriptors = append(descriptors, entry.toDescriptor(id))
	}

	defaultID := raw.Select
	if defaultID == "" {
		// No explicit selection: the first declared model is the default
		defaultID = order[0]
	} else if !seen[defaultID] {
		errs = append(errs, ValidationError{
			Field:   "select",
			Message: fmt.Sprintf("selected model '%s' is not defined", defaultID),
		})
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return NewModelCatalog(defaultID, descriptors), nil
}

// =============================================================================
// WRITE-BACK
// =============================================================================

// SaveModelSelection persists a new default model to the catalog file.
// The edit is surgical: only the select key changes, so user comments
// and table order survive. Fails if id is not defined in the catalog.
func SaveModelSelection(path, id string) error {
	actual, err := resolveCatalogPath(path)
	if err != nil {
		return err
	}

	cat, err := loadModelsFile(actual)
	if err != nil {
		return err
	}
	if _, ok := cat.Lookup(id); !ok {
		return fmt.Errorf("model %q is not defined in %s", id, actual)
	}

	data, err := os.ReadFile(actual)
	if err != nil {
		return fmt.Errorf("failed to read model catalog: %w", err)
	}

	var updated []byte
	if strings.HasSuffix(actual, ".json") {
		updated, err = jsonparser.Set(data, []byte(strconv.Quote(id)), "select")
		if err != nil {
			return fmt.Errorf("failed to update selection: %w", err)
		}
	} else {
		updated = replaceTOMLSelect(data, id)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(actual, updated, 0600); err != nil {
		return fmt.Errorf("failed to write model catalog: %w", err)
	}
	return nil
}

// replaceTOMLSelect rewrites the top-level select line in place. The key
// must appear before the first table header; if the file has none, one is
// prepended.
func replaceTOMLSelect(data []byte, id string) []byte {
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			break
		}
		rest, found := strings.CutPrefix(trimmed, "select")
		if !found {
			continue
		}
		if rest = strings.TrimSpace(rest); strings.HasPrefix(rest, "=") {
			lines[i] = "select = " + strconv.Quote(id)
			return []byte(strings.Join(lines, "\n"))
		}
	}
	return []byte("select = " + strconv.Quote(id) + "\n" + strings.Join(lines, "\n"))
}

// =============================================================================
// TEMPLATE
// =============================================================================

const defaultModelsTOML = `# agentchat model catalog
# Generated by agentchat - edit with care
#
# Each [models.<id>] table defines one model the picker offers.
# "select" names the model used for new threads.
#
# Fields:
#   display_name    shown in the picker (defaults to the id)
#   model           runtime-native model name (required)
#   runtime_url     per-model runtime endpoint (defaults to the app config)
#   temperature     sampling temperature, 0 to 2 (default 0.7)
#   max_tokens      response length cap (default 4096)
#   supports_tools  model accepts tool definitions (default true)
#   supports_vision model accepts image content (default false)
#   enabled         show in the picker (default true)
#   system_prompt   prepended to every request

select = "llama3.1"

[models."llama3.1"]
display_name = "Llama 3.1"
model = "llama3.1"
temperature = 0.7
max_tokens = 4096

[models."qwen2.5-coder"]
display_name = "Qwen 2.5 Coder"
model = "qwen2.5-coder"
temperature = 0.2
max_tokens = 8192

[models.llava]
display_name = "LLaVA"
model = "llava"
supports_tools = false
supports_vision = true
enabled = false
`

// WriteDefaultModels writes the sample model catalog on first run.
// Existing files are never overwritten.
func WriteDefaultModels(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := util.AtomicWriteFile(path, []byte(defaultModelsTOML), 0600); err != nil {
		return fmt.Errorf("failed to write default model catalog: %w", err)
	}
	return nil
}
