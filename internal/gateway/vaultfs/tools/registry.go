package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Registry holds tool definitions and dispatches tools/call requests,
// grounded on the teacher's tools.Registry
// (internal/mcpserver/tools/registry.go).
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]*toolEntry
	ordering []string
}

type toolEntry struct {
	def     ToolDefinition
	handler Handler
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*toolEntry)}
}

func (r *Registry) Register(def ToolDefinition, handler Handler) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %s already registered", def.Name)
	}

	r.tools[def.Name] = &toolEntry{def: def, handler: handler}
	r.ordering = append(r.ordering, def.Name)
	return nil
}

func (r *Registry) MustRegister(def ToolDefinition, handler Handler) {
	if err := r.Register(def, handler); err != nil {
		panic(err)
	}
}

func (r *Registry) List() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]ToolDescriptor, 0, len(r.ordering))
	for _, name := range r.ordering {
		entry := r.tools[name]
		descriptors = append(descriptors, ToolDescriptor{
			Name:        entry.def.Name,
			Description: entry.def.Description,
			InputSchema: entry.def.InputSchema,
		})
	}
	return descriptors
}

// Call dispatches a tools/call request and wraps the handler's result in
// the content-block envelope.
func (r *Registry) Call(ctx context.Context, tc *ToolContext, req CallRequest) (any, error) {
	r.mu.RLock()
	entry, exists := r.tools[req.Name]
	r.mu.RUnlock()

	if !exists {
		return nil, NewToolError(ErrCodeMethodNotFound, fmt.Sprintf("tool not found: %s", req.Name), nil)
	}

	result, err := entry.handler(ctx, tc, req.Arguments)
	if err != nil {
		return nil, err
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, NewToolError(ErrCodeInternal, "failed to serialize tool result: "+err.Error(), nil)
	}

	return CallResult{
		Content: []ContentBlock{{Type: "text", Text: string(resultJSON)}},
	}, nil
}

func (r *Registry) Get(name string) (*ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.tools[name]
	if !exists {
		return nil, false
	}
	return &entry.def, true
}
