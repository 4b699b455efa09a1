// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mcp manages connections to external MCP tool servers.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/time/rate"

	"github.com/jeranaias/agentchat-tui/internal/agent"
	"github.com/jeranaias/agentchat-tui/internal/catalog"
	"github.com/jeranaias/agentchat-tui/internal/model"
)

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

const (
	// nameSeparator joins server ID and tool name into the namespaced form
	// the model sees, e.g. "search__web". The split on the way back takes
	// the first occurrence, so server IDs must not contain the separator.
	nameSeparator = "__"

	// connectTimeout bounds the handshake with one server: process spawn
	// or HTTP connect, initialize, and the first tool listing.
	connectTimeout = 30 * time.Second

	// Tool call rate per server. PERFORMANCE: a runaway tool loop cannot
	// hammer a single server process faster than this.
	callsPerSecond = 5
	callBurst      = 5
)

// Sentinel errors for invocation routing.
var (
	ErrUnknownServer = errors.New("unknown tool server")
	ErrUnknownTool   = errors.New("unknown tool")
)

// =============================================================================
// MANAGER
// =============================================================================

// ServerStatus reports the outcome of connecting one tool server.
type ServerStatus struct {
	ID        string
	ToolCount int
	Err       error
}

// serverConn is one live tool server connection.
type serverConn struct {
	id      string
	client  mcpclient.MCPClient
	limiter *rate.Limiter
	tools   []mcp.Tool
	names   map[string]bool
}

// Manager owns the MCP client connections and routes namespaced tool calls
// to the right server. It implements the invocation layer's ToolCaller.
//
// The Manager is thread-safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	conns map[string]*serverConn
	info  mcp.Implementation
}

var _ agent.ToolCaller = (*Manager)(nil)

// NewManager creates a manager that identifies itself to servers with the
// given client name and version.
func NewManager(clientName, clientVersion string) *Manager {
	return &Manager{
		conns: make(map[string]*serverConn),
		info: mcp.Implementation{
			Name:    clientName,
			Version: clientVersion,
		},
	}
}

// =============================================================================
// CONNECTION LIFECYCLE
// =============================================================================

// Connect establishes connections for every non-disabled server in the list
// and returns a per-server status. One server failing never prevents the
// rest from connecting. Servers that are already connected are reported with
// their current tool count and left alone, so Connect can be re-run after a
// catalog change.
func (m *Manager) Connect(ctx context.Context, servers []catalog.ToolServerDescriptor) []ServerStatus {
	statuses := make([]ServerStatus, 0, len(servers))
	for _, desc := range servers {
		if desc.Disabled {
			continue
		}

		if conn := m.conn(desc.ID); conn != nil {
			statuses = append(statuses, ServerStatus{ID: desc.ID, ToolCount: len(conn.tools)})
			continue
		}

		status := ServerStatus{ID: desc.ID}
		conn, err := m.connect(ctx, desc)
		if err != nil {
			status.Err = err
			log.Printf("MCP: connect failed server=%s err=%v", desc.ID, err)
		} else {
			status.ToolCount = len(conn.tools)
			m.mu.Lock()
			m.conns[desc.ID] = conn
			m.mu.Unlock()
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// connect performs the full handshake with one server.
func (m *Manager) connect(ctx context.Context, desc catalog.ToolServerDescriptor) (*serverConn, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := newClient(desc)
	if err != nil {
		return nil, err
	}

	// Streamable HTTP transports need an explicit start; a stdio client is
	// already running once its process spawned.
	if desc.Transport() == catalog.TransportHTTP {
		if err := client.Start(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("start transport: %w", err)
		}
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = m.info
	if _, err := client.Initialize(ctx, initReq); err != nil {
		client.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}

	toolsResult, err := client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("list tools: %w", err)
	}

	names := make(map[string]bool, len(toolsResult.Tools))
	for _, t := range toolsResult.Tools {
		names[t.Name] = true
	}

	return &serverConn{
		id:      desc.ID,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(callsPerSecond), callBurst),
		tools:   toolsResult.Tools,
		names:   names,
	}, nil
}

// newClient builds the transport-appropriate MCP client for a descriptor.
func newClient(desc catalog.ToolServerDescriptor) (*mcpclient.Client, error) {
	if desc.Transport() == catalog.TransportHTTP {
		var opts []transport.StreamableHTTPCOption
		if len(desc.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(desc.Headers))
		}
		return mcpclient.NewStreamableHttpClient(desc.URL, opts...)
	}
	return mcpclient.NewStdioMCPClient(desc.Command, expandEnv(desc.Env), desc.Args...)
}

// expandEnv flattens the env map into KEY=VALUE form, expanding ${VAR}
// references against the parent environment. Sorted so the child process
// environment is deterministic.
func expandEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+os.ExpandEnv(v))
	}
	sort.Strings(out)
	return out
}

// Connected returns the IDs of the live server connections, sorted.
func (m *Manager) Connected() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close shuts down every server connection. The manager can be reused with
// a fresh Connect afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for id, conn := range m.conns {
		if err := conn.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
		delete(m.conns, id)
	}
	return errors.Join(errs...)
}

func (m *Manager) conn(id string) *serverConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conns[id]
}

// =============================================================================
// TOOL LISTING AND INVOCATION
// =============================================================================

// Tools returns namespaced definitions for every tool exposed by the named
// servers. Servers that are not connected (failed, disabled, or removed) are
// skipped so a turn proceeds with whatever is actually available.
func (m *Manager) Tools(ctx context.Context, servers []string) ([]agent.ToolDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var defs []agent.ToolDefinition
	for _, id := range servers {
		conn, ok := m.conns[id]
		if !ok {
			continue
		}
		for _, tool := range conn.tools {
			schema := json.RawMessage(tool.RawInputSchema)
			if len(schema) == 0 {
				marshaled, err := json.Marshal(tool.InputSchema)
				if err != nil {
					return nil, fmt.Errorf("tool %s%s%s schema: %w", id, nameSeparator, tool.Name, err)
				}
				schema = marshaled
			}
			defs = append(defs, agent.ToolDefinition{
				Name:        id + nameSeparator + tool.Name,
				Description: tool.Description,
				InputSchema: schema,
			})
		}
	}
	return defs, nil
}

// Call routes a namespaced tool invocation to its server and flattens the
// response into text. Tool-reported failures come back in the result with
// IsError set; the error return is reserved for routing and transport
// faults.
func (m *Manager) Call(ctx context.Context, name string, args map[string]any) (model.ToolResult, error) {
	serverID, toolName, found := strings.Cut(name, nameSeparator)
	if !found || serverID == "" || toolName == "" {
		return model.ToolResult{}, fmt.Errorf("%w: malformed tool name %q", ErrUnknownTool, name)
	}

	conn := m.conn(serverID)
	if conn == nil {
		return model.ToolResult{}, fmt.Errorf("%w: %q", ErrUnknownServer, serverID)
	}
	if !conn.names[toolName] {
		return model.ToolResult{}, fmt.Errorf("%w: %q on server %q", ErrUnknownTool, toolName, serverID)
	}

	if err := conn.limiter.Wait(ctx); err != nil {
		return model.ToolResult{}, err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args

	result, err := conn.client.CallTool(ctx, req)
	if err != nil {
		return model.ToolResult{}, fmt.Errorf("call %s: %w", name, err)
	}

	return model.ToolResult{
		Name:    name,
		Content: extractText(result.Content),
		IsError: result.IsError,
	}, nil
}

// extractText flattens tool result content blocks into displayable text.
// Non-text blocks are noted by type rather than dropped silently.
func extractText(content []mcp.Content) string {
	var b strings.Builder
	for _, item := range content {
		switch c := item.(type) {
		case mcp.TextContent:
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(c.Text)
		case mcp.ImageContent:
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString("[image: " + c.MIMEType + "]")
		case mcp.EmbeddedResource:
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString("[embedded resource]")
		}
	}
	return b.String()
}
