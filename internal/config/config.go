// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for agentchat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.agentchat/config.toml
//   - ~/.agentchat/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/agentchat-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete agentchat configuration.
type Config struct {
	// Version of the config schema
	Version string `toml:"version" json:"version"`

	// Runtime configuration (the agent runtime endpoint)
	Runtime RuntimeConfig `toml:"runtime" json:"runtime"`

	// Paths configuration (data directory layout)
	Paths PathsConfig `toml:"paths" json:"paths"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`

	// Limits configuration
	Limits LimitsConfig `toml:"limits" json:"limits"`
}

// RuntimeConfig describes how to reach the agent runtime.
type RuntimeConfig struct {
	// URL is the default runtime endpoint. A model catalog entry with its
	// own runtime_url overrides this per model.
	URL string `toml:"url" json:"url"`

	// TimeoutSeconds bounds non-streaming requests (health checks, model
	// listing). Streaming chat requests have no client-side deadline;
	// cancellation is context-driven.
	TimeoutSeconds int `toml:"timeout_seconds" json:"timeout_seconds"`

	// ConnectTimeoutSeconds bounds connection establishment.
	ConnectTimeoutSeconds int `toml:"connect_timeout_seconds" json:"connect_timeout_seconds"`

	// MaxRetries is the number of retries for transient request failures.
	MaxRetries int `toml:"max_retries" json:"max_retries"`
}

// PathsConfig describes the on-disk data layout. Empty fields are derived
// from DataDir when the config is loaded.
type PathsConfig struct {
	// DataDir is the root of all agentchat state (default ~/.agentchat).
	DataDir string `toml:"data_dir" json:"data_dir"`

	// ModelsFile is the model catalog path (default <DataDir>/models.toml).
	ModelsFile string `toml:"models_file" json:"models_file"`

	// ToolsFile is the tool catalog path (default <DataDir>/mcp.json).
	ToolsFile string `toml:"tools_file" json:"tools_file"`

	// ThreadsDir holds one JSON file per thread (default <DataDir>/threads).
	ThreadsDir string `toml:"threads_dir" json:"threads_dir"`

	// IndexFile is the SQLite search index (default <DataDir>/index.db).
	IndexFile string `toml:"index_file" json:"index_file"`

	// HistoryFile is the REPL input history (default <DataDir>/history).
	HistoryFile string `toml:"history_file" json:"history_file"`
}

// UIConfig contains UI preferences.
type UIConfig struct {
	// Theme selects the color theme: "dark", "light", or "auto"
	Theme string `toml:"theme" json:"theme"`

	// PlainMode forces the line-based REPL instead of the TUI
	PlainMode bool `toml:"plain_mode" json:"plain_mode"`

	// MouseEnabled enables mouse wheel scrolling in the TUI
	MouseEnabled bool `toml:"mouse_enabled" json:"mouse_enabled"`

	// SyntaxHighlight enables code block highlighting
	SyntaxHighlight bool `toml:"syntax_highlight" json:"syntax_highlight"`

	// ShowTimestamps shows per-message timestamps in the history view
	ShowTimestamps bool `toml:"show_timestamps" json:"show_timestamps"`

	// ShowReasoning shows collapsed reasoning sections on assistant messages
	ShowReasoning bool `toml:"show_reasoning" json:"show_reasoning"`
}

// LimitsConfig contains resource limits.
type LimitsConfig struct {
	// MaxThreads caps the number of stored threads; the oldest are
	// removed past the cap.
	MaxThreads int `toml:"max_threads" json:"max_threads"`

	// MaxToolRounds caps agentic tool-call rounds per user message.
	MaxToolRounds int `toml:"max_tool_rounds" json:"max_tool_rounds"`

	// HistoryWindow caps how many messages of history are sent to the
	// runtime per request. 0 means the full thread.
	HistoryWindow int `toml:"history_window" json:"history_window"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
// Path fields are left empty and derived from DataDir during Load.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Runtime: RuntimeConfig{
			URL:                   "http://127.0.0.1:11434",
			TimeoutSeconds:        120,
			ConnectTimeoutSeconds: 5,
			MaxRetries:            3,
		},

		UI: UIConfig{
			Theme:           "dark",
			PlainMode:       false,
			MouseEnabled:    true,
			SyntaxHighlight: true,
			ShowTimestamps:  false,
			ShowReasoning:   true,
		},

		Limits: LimitsConfig{
			MaxThreads:    100,
			MaxToolRounds: 8,
			HistoryWindow: 0,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the agentchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".agentchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only); the tool
// catalog referenced from here can carry auth headers.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// expandHome expands a leading ~/ to the user's home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
	}
	return path
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last, then paths are resolved.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	// Try TOML first
	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	// Try JSON as fallback
	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	cfg, err = finishLoad(cfg)
	if err != nil {
		return nil, err
	}

	// Return defaults (with any load error for informational purposes)
	return cfg, loadErr
}

// finishLoad runs the shared tail of every load path: env overrides,
// path resolution, and validation.
func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := cfg.ResolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file into cfg.
// Keys absent from the file keep their current values.
func LoadTOML(cfg *Config, path string) error {
	// SECURITY: Check and fix file permissions if needed
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadJSON loads configuration from a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	// SECURITY: Check and fix file permissions if needed
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Used by the --config flag.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finishLoad(cfg)
}

// fillDefaults fills any missing required values from defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	if cfg.Runtime.URL == "" {
		cfg.Runtime.URL = defaults.Runtime.URL
	}
	if cfg.Runtime.TimeoutSeconds == 0 {
		cfg.Runtime.TimeoutSeconds = defaults.Runtime.TimeoutSeconds
	}
	if cfg.Runtime.ConnectTimeoutSeconds == 0 {
		cfg.Runtime.ConnectTimeoutSeconds = defaults.Runtime.ConnectTimeoutSeconds
	}

	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}

	if cfg.Limits.MaxThreads == 0 {
		cfg.Limits.MaxThreads = defaults.Limits.MaxThreads
	}
	if cfg.Limits.MaxToolRounds == 0 {
		cfg.Limits.MaxToolRounds = defaults.Limits.MaxToolRounds
	}

	return nil
}

// ResolvePaths derives any unset path fields from DataDir and expands a
// leading ~ in user-provided paths. Explicit per-file paths in the config
// always win over the derived layout.
func (c *Config) ResolvePaths() error {
	if c.Paths.DataDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return err
		}
		c.Paths.DataDir = dir
	}
	c.Paths.DataDir = expandHome(c.Paths.DataDir)

	if c.Paths.ModelsFile == "" {
		c.Paths.ModelsFile = filepath.Join(c.Paths.DataDir, "models.toml")
	}
	if c.Paths.ToolsFile == "" {
		c.Paths.ToolsFile = filepath.Join(c.Paths.DataDir, "mcp.json")
	}
	if c.Paths.ThreadsDir == "" {
		c.Paths.ThreadsDir = filepath.Join(c.Paths.DataDir, "threads")
	}
	if c.Paths.IndexFile == "" {
		c.Paths.IndexFile = filepath.Join(c.Paths.DataDir, "index.db")
	}
	if c.Paths.HistoryFile == "" {
		c.Paths.HistoryFile = filepath.Join(c.Paths.DataDir, "history")
	}

	c.Paths.ModelsFile = expandHome(c.Paths.ModelsFile)
	c.Paths.ToolsFile = expandHome(c.Paths.ToolsFile)
	c.Paths.ThreadsDir = expandHome(c.Paths.ThreadsDir)
	c.Paths.IndexFile = expandHome(c.Paths.IndexFile)
	c.Paths.HistoryFile = expandHome(c.Paths.HistoryFile)

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# agentchat configuration file\n")
	sb.WriteString("# Generated by agentchat - edit with care\n")
	sb.WriteString("\n")

	encoder := toml.NewEncoder(&sb)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveJSON(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Runtime endpoint must be a well-formed http(s) URL
	if c.Runtime.URL != "" {
		u, err := url.Parse(c.Runtime.URL)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "runtime.url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, ValidationError{
				Field:   "runtime.url",
				Message: fmt.Sprintf("URL scheme must be http or https, got '%s'", u.Scheme),
			})
		}
	} else {
		errs = append(errs, ValidationError{
			Field:   "runtime.url",
			Message: "runtime URL must not be empty",
		})
	}

	if c.Runtime.TimeoutSeconds < 0 {
		errs = append(errs, ValidationError{
			Field:   "runtime.timeout_seconds",
			Message: "must not be negative",
		})
	}
	if c.Runtime.ConnectTimeoutSeconds < 0 {
		errs = append(errs, ValidationError{
			Field:   "runtime.connect_timeout_seconds",
			Message: "must not be negative",
		})
	}
	if c.Runtime.MaxRetries < 0 || c.Runtime.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "runtime.max_retries",
			Message: fmt.Sprintf("must be between 0 and 10, got %d", c.Runtime.MaxRetries),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if c.Limits.MaxThreads < 1 {
		errs = append(errs, ValidationError{
			Field:   "limits.max_threads",
			Message: "must be at least 1",
		})
	}
	if c.Limits.MaxToolRounds < 1 || c.Limits.MaxToolRounds > 100 {
		errs = append(errs, ValidationError{
			Field:   "limits.max_tool_rounds",
			Message: fmt.Sprintf("must be between 1 and 100, got %d", c.Limits.MaxToolRounds),
		})
	}
	if c.Limits.HistoryWindow < 0 {
		errs = append(errs, ValidationError{
			Field:   "limits.history_window",
			Message: "must not be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - AGENTCHAT_RUNTIME_URL: overrides runtime.url
//   - AGENTCHAT_TIMEOUT: overrides runtime.timeout_seconds
//   - AGENTCHAT_DATA_DIR: overrides paths.data_dir
//   - AGENTCHAT_THEME: overrides ui.theme
//   - AGENTCHAT_PLAIN: set to "1" or "true" to force the plain REPL
func (c *Config) ApplyEnvOverrides() {
	if runtimeURL := os.Getenv("AGENTCHAT_RUNTIME_URL"); runtimeURL != "" {
		c.Runtime.URL = runtimeURL
	}

	if timeout := os.Getenv("AGENTCHAT_TIMEOUT"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil && secs > 0 {
			c.Runtime.TimeoutSeconds = secs
		}
	}

	if dataDir := os.Getenv("AGENTCHAT_DATA_DIR"); dataDir != "" {
		c.Paths.DataDir = dataDir
	}

	if theme := os.Getenv("AGENTCHAT_THEME"); theme != "" {
		c.UI.Theme = theme
	}

	if plain := os.Getenv("AGENTCHAT_PLAIN"); plain != "" {
		c.UI.PlainMode = plain == "1" || strings.ToLower(plain) == "true"
	}
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			// Log but don't fail - use defaults
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
			cfg.ApplyEnvOverrides()
			if resolveErr := cfg.ResolvePaths(); resolveErr != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", resolveErr)
			}
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
// This should only be used in tests to reset state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
