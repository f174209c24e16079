package tools

import (
	"context"
	"encoding/json"
	"testing"
)

func TestRegistry_CallWrapsResultInContentBlock(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(ToolDefinition{Name: "echo"}, func(ctx context.Context, tc *ToolContext, raw json.RawMessage) (any, error) {
		return map[string]string{"ok": "yes"}, nil
	})

	result, err := r.Call(context.Background(), nil, CallRequest{Name: "echo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	callResult, ok := result.(CallResult)
	if !ok {
		t.Fatalf("expected CallResult, got %T", result)
	}
	if len(callResult.Content) != 1 || callResult.Content[0].Type != "text" {
		t.Fatalf("unexpected content: %+v", callResult.Content)
	}
}

func TestRegistry_CallUnknownToolReturnsMethodNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Call(context.Background(), nil, CallRequest{Name: "nope"})
	toolErr, ok := err.(*ToolError)
	if !ok || toolErr.Code != ErrCodeMethodNotFound {
		t.Fatalf("expected METHOD_NOT_FOUND tool error, got %v", err)
	}
}

func TestRegistry_RegisterRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	handler := func(ctx context.Context, tc *ToolContext, raw json.RawMessage) (any, error) { return nil, nil }
	if err := r.Register(ToolDefinition{Name: "dup"}, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(ToolDefinition{Name: "dup"}, handler); err == nil {
		t.Error("expected error registering duplicate tool name")
	}
}

func TestRegistry_ListPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	RegisterAllTools(r)

	descriptors := r.List()
	if len(descriptors) != 5 {
		t.Fatalf("expected 5 registered tools, got %d", len(descriptors))
	}
	if descriptors[0].Name != "vault.read" {
		t.Errorf("expected first tool vault.read, got %s", descriptors[0].Name)
	}
}
