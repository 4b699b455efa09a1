// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"encoding/json"

	"github.com/jeranaias/agentchat-tui/internal/model"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// chatRequest is the request body for the /api/chat endpoint.
type chatRequest struct {
	Model    string        `json:"model"`             // Runtime model tag (e.g. "llama3.1:8b")
	Messages []wireMessage `json:"messages"`          // Conversation history
	Stream   bool          `json:"stream"`            // Always true for this client
	Tools    []wireTool    `json:"tools,omitempty"`   // Available tools for function calling
	Options  *wireOptions  `json:"options,omitempty"` // Sampling parameters
}

// wireMessage is a chat message in the runtime's wire format.
type wireMessage struct {
	Role      string         `json:"role"`                 // "user", "assistant", "system", "tool"
	Content   string         `json:"content"`              // The message content
	Thinking  string         `json:"thinking,omitempty"`   // Reasoning output, echoed back on replay
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"` // Tool calls requested by assistant
	ToolName  string         `json:"tool_name,omitempty"`  // Which tool a "tool" message answers
}

// wireToolCall represents a tool invocation from the model.
type wireToolCall struct {
	Function wireToolFunction `json:"function"`
}

// wireToolFunction contains the function name and arguments.
type wireToolFunction struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// wireTool represents a tool definition for function calling.
type wireTool struct {
	Type     string         `json:"type"`     // Always "function"
	Function wireToolSchema `json:"function"` // Function definition
}

// wireToolSchema defines a tool's interface. Parameters carries the JSON
// Schema exactly as the tool server published it.
type wireToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// wireOptions contains sampling parameters for inference.
type wireOptions struct {
	Temperature float64 `json:"temperature,omitempty"` // 0.0-2.0
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens to generate
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// runtimeError is the error body the runtime returns on non-200 responses.
type runtimeError struct {
	Error string `json:"error"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// toWireMessages converts stored messages into the runtime's wire format.
func toWireMessages(history []model.Message) []wireMessage {
	out := make([]wireMessage, 0, len(history))
	for _, m := range history {
		wm := wireMessage{
			Role:    m.Role.String(),
			Content: m.Content,
		}
		if m.Role == model.RoleAssistant {
			wm.Thinking = m.Reasoning
			wm.ToolCalls = toWireToolCalls(m.ToolCalls)
		}
		if m.Role == model.RoleTool && m.ToolResult != nil {
			wm.ToolName = m.ToolResult.Name
		}
		out = append(out, wm)
	}
	return out
}

func toWireToolCalls(calls []model.ToolCall) []wireToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]wireToolCall, len(calls))
	for i, c := range calls {
		out[i] = wireToolCall{
			Function: wireToolFunction{
				Name:      c.Name,
				Arguments: c.Arguments,
			},
		}
	}
	return out
}

// toWireTools converts tool definitions into function-calling declarations.
func toWireTools(defs []ToolDefinition) []wireTool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]wireTool, len(defs))
	for i, d := range defs {
		out[i] = wireTool{
			Type: "function",
			Function: wireToolSchema{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.InputSchema,
			},
		}
	}
	return out
}

// toWireOptions converts chat options, returning nil when everything is
// default so the request body stays minimal.
func toWireOptions(opts ChatOptions) *wireOptions {
	if opts.Temperature == 0 && opts.MaxTokens == 0 {
		return nil
	}
	return &wireOptions{
		Temperature: opts.Temperature,
		NumPredict:  opts.MaxTokens,
	}
}
