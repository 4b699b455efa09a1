// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog loads and validates the model and tool-server catalogs.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrCatalogNotFound indicates that no catalog file exists at the given path.
// Callers use this to distinguish a first run (write the template and retry)
// from a malformed catalog (fail loudly).
var ErrCatalogNotFound = errors.New("catalog file not found")

// ValidationError identifies a single invalid catalog field by dotted path,
// e.g. "models.claude-3.temperature".
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

// =============================================================================
// TRANSPORT KIND
// =============================================================================

// TransportKind identifies how a tool server is reached.
// It is derived from the descriptor's fields, never stored in the file.
type TransportKind int

const (
	// TransportStdio runs the server as a local child process and speaks
	// over its stdin/stdout.
	TransportStdio TransportKind = iota

	// TransportHTTP connects to a streamable HTTP endpoint.
	TransportHTTP
)

// String returns the transport name used in UI and error messages.
func (k TransportKind) String() string {
	switch k {
	case TransportStdio:
		return "stdio"
	case TransportHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// =============================================================================
// MODEL DESCRIPTOR
// =============================================================================

// ModelDescriptor describes one model the picker can offer.
// Descriptors are immutable after load.
type ModelDescriptor struct {
	// ID is the catalog key the rest of the app refers to the model by.
	ID string

	// DisplayName is the human-readable name shown in the UI.
	// Defaults to ID when the catalog entry omits it.
	DisplayName string

	// Model is the runtime-native model name sent to the agent runtime.
	Model string

	// RuntimeURL overrides the app-wide runtime endpoint for this model.
	// Empty means inherit the configured default.
	RuntimeURL string

	// SupportsTools marks models that can receive tool definitions.
	SupportsTools bool

	// SupportsVision marks models that accept image content.
	SupportsVision bool

	// Enabled controls whether the model appears in the picker.
	// A disabled model can still be selected explicitly.
	Enabled bool

	// Temperature is the sampling temperature, in [0, 2].
	Temperature float64

	// MaxTokens caps the response length.
	MaxTokens int

	// SystemPrompt is prepended to every request made with this model.
	SystemPrompt string
}

// EffectiveURL returns the runtime endpoint for this model, falling back
// to the app-wide default when the descriptor does not set one.
func (d ModelDescriptor) EffectiveURL(fallback string) string {
	if d.RuntimeURL != "" {
		return d.RuntimeURL
	}
	return fallback
}

// ContextString returns a formatted context window string for display.
func (d ModelDescriptor) ContextString() string {
	if d.MaxTokens >= 1000000 {
		return fmt.Sprintf("%.1fM tokens", float64(d.MaxTokens)/1000000)
	}
	if d.MaxTokens >= 1000 {
		return fmt.Sprintf("%dK tokens", d.MaxTokens/1000)
	}
	return fmt.Sprintf("%d tokens", d.MaxTokens)
}

// CapabilityString returns a comma-separated capability summary for display.
func (d ModelDescriptor) CapabilityString() string {
	caps := []string{}
	if d.SupportsTools {
		caps = append(caps, "Tools")
	}
	if d.SupportsVision {
		caps = append(caps, "Vision")
	}
	if len(caps) == 0 {
		return "Text only"
	}
	return strings.Join(caps, ", ")
}

// =============================================================================
// TOOL SERVER DESCRIPTOR
// =============================================================================

// ToolServerDescriptor describes one MCP tool server connection.
// Exactly one of Command or URL is set; Transport is derived from which.
type ToolServerDescriptor struct {
	// ID is the server name used for tool namespacing (server__tool).
	ID string

	// Command and Args launch a local stdio server.
	Command string
	Args    []string

	// Env is merged into the child process environment (stdio only).
	Env map[string]string

	// URL is the endpoint of a streamable HTTP server.
	URL string

	// Headers are sent with every HTTP request (http only).
	Headers map[string]string

	// Disabled servers stay in the catalog but are never connected.
	Disabled bool
}

// Transport returns the derived transport kind: an entry with a URL is
// HTTP, everything else is stdio.
func (d ToolServerDescriptor) Transport() TransportKind {
	if d.URL != "" {
		return TransportHTTP
	}
	return TransportStdio
}

// =============================================================================
// MODEL CATALOG
// =============================================================================

// ModelCatalog is the validated, ordered set of model descriptors.
// Insertion order in the file is display order. Immutable after load.
type ModelCatalog struct {
	defaultID string
	order     []string
	models    map[string]ModelDescriptor
}

// NewModelCatalog builds a catalog from descriptors in display order.
// The loader is the usual constructor; this exists for tests and for
// programmatic catalogs.
func NewModelCatalog(defaultID string, descriptors []ModelDescriptor) *ModelCatalog {
	c := &ModelCatalog{
		defaultID: defaultID,
		models:    make(map[string]ModelDescriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		if _, dup := c.models[d.ID]; dup {
			continue
		}
		c.order = append(c.order, d.ID)
		c.models[d.ID] = d
	}
	return c
}

// Default returns the identifier of the model used for new threads.
func (c *ModelCatalog) Default() string {
	return c.defaultID
}

// Lookup returns the descriptor for id and whether it exists.
func (c *ModelCatalog) Lookup(id string) (ModelDescriptor, bool) {
	d, ok := c.models[id]
	return d, ok
}

// Order returns the model identifiers in display order.
func (c *ModelCatalog) Order() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Descriptors returns all descriptors in display order.
func (c *ModelCatalog) Descriptors() []ModelDescriptor {
	out := make([]ModelDescriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.models[id])
	}
	return out
}

// Len returns the number of models in the catalog.
func (c *ModelCatalog) Len() int {
	return len(c.order)
}

// =============================================================================
// TOOL CATALOG
// =============================================================================

// ToolCatalog is the validated, ordered set of tool server descriptors.
// Same shape as ModelCatalog. An empty tool catalog is valid; chat then
// runs without tools.
type ToolCatalog struct {
	order   []string
	servers map[string]ToolServerDescriptor
}

// NewToolCatalog builds a catalog from descriptors in display order.
func NewToolCatalog(descriptors []ToolServerDescriptor) *ToolCatalog {
	c := &ToolCatalog{
		servers: make(map[string]ToolServerDescriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		if _, dup := c.servers[d.ID]; dup {
			continue
		}
		c.order = append(c.order, d.ID)
		c.servers[d.ID] = d
	}
	return c
}

// Lookup returns the descriptor for id and whether it exists.
func (c *ToolCatalog) Lookup(id string) (ToolServerDescriptor, bool) {
	d, ok := c.servers[id]
	return d, ok
}

// Order returns the server identifiers in display order.
func (c *ToolCatalog) Order() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Descriptors returns all descriptors in display order.
func (c *ToolCatalog) Descriptors() []ToolServerDescriptor {
	out := make([]ToolServerDescriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.servers[id])
	}
	return out
}

// EnabledIDs returns the identifiers of all non-disabled servers, in
// display order. This is the initial enabled set for a new session.
func (c *ToolCatalog) EnabledIDs() []string {
	var out []string
	for _, id := range c.order {
		if !c.servers[id].Disabled {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of servers in the catalog.
func (c *ToolCatalog) Len() int {
	return len(c.order)
}
