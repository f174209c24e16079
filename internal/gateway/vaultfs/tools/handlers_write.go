package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
)

type writeParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type writeResult struct {
	Path    string `json:"path"`
	Written int    `json:"bytesWritten"`
}

// HandleWrite overwrites (or creates) one vault-confined file and
// schedules the mutation for commit via C10.
func HandleWrite(ctx context.Context, tc *ToolContext, raw json.RawMessage) (any, error) {
	var params writeParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, "invalid parameters: "+err.Error(), nil)
	}
	if params.Path == "" {
		return nil, NewToolError(ErrCodeInvalidParams, "path is required", nil)
	}

	resolved, err := tc.Validator.ResolveWithinVault(params.Path)
	if err != nil {
		return nil, NewToolError(ErrCodePathEscape, err.Error(), nil)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, NewToolError(ErrCodeInternal, "failed to create parent directory: "+err.Error(), nil)
	}

	if err := os.WriteFile(resolved, []byte(params.Content), 0o644); err != nil {
		return nil, NewToolError(ErrCodeInternal, "write failed: "+err.Error(), nil)
	}

	tc.Mutations.Schedule("wrote " + params.Path)

	return writeResult{Path: params.Path, Written: len(params.Content)}, nil
}
