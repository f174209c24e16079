package tools

import (
	"context"
	"encoding/json"
)

// ToolDefinition describes a tool with its name, description and input
// schema, grounded on the teacher's tools.ToolDefinition
// (internal/mcpserver/tools/tool.go).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Handler processes a tools/call invocation.
type Handler func(context.Context, *ToolContext, json.RawMessage) (any, error)

// ToolDescriptor is returned by tools/list.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// CallRequest represents a tools/call JSON-RPC request.
type CallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallResult wraps a successful tool execution result in the
// protocol's content-block envelope.
type CallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}
