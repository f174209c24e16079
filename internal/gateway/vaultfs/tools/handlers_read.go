package tools

import (
	"context"
	"encoding/json"
	"os"
)

type readParams struct {
	Path string `json:"path"`
}

type readResult struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// HandleRead returns the full text content of one vault-confined file.
func HandleRead(ctx context.Context, tc *ToolContext, raw json.RawMessage) (any, error) {
	var params readParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, "invalid parameters: "+err.Error(), nil)
	}

	resolved, err := tc.Validator.ResolveWithinVault(params.Path)
	if err != nil {
		return nil, NewToolError(ErrCodePathEscape, err.Error(), nil)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewToolError(ErrCodeNotFound, "note not found: "+params.Path, nil)
		}
		return nil, NewToolError(ErrCodeInternal, "read failed: "+err.Error(), nil)
	}

	return readResult{Path: params.Path, Content: string(data)}, nil
}
