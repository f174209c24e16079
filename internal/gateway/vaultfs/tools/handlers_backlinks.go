package tools

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

type backlinksParams struct {
	Path string `json:"path"`
}

type backlinksResult struct {
	Path      string   `json:"path"`
	Backlinks []string `json:"backlinks"`
}

var wikilinkPattern = regexp.MustCompile(`\[\[([^\]|#]+)`)

// HandleBacklinks returns every vault note whose wikilink-style
// [[references]] name the given note.
func HandleBacklinks(ctx context.Context, tc *ToolContext, raw json.RawMessage) (any, error) {
	var params backlinksParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, "invalid parameters: "+err.Error(), nil)
	}
	if params.Path == "" {
		return nil, NewToolError(ErrCodeInvalidParams, "path is required", nil)
	}

	if _, err := tc.Validator.ResolveWithinVault(params.Path); err != nil {
		return nil, NewToolError(ErrCodePathEscape, err.Error(), nil)
	}

	target := noteStem(params.Path)

	root, err := tc.Validator.ResolveWithinVault(".")
	if err != nil {
		return nil, NewToolError(ErrCodeInternal, err.Error(), nil)
	}

	backlinks := []string{}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".md" {
			return nil
		}

		rel, err := relativeToVault(tc, p)
		if err != nil || rel == params.Path {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return nil
		}

		for _, m := range wikilinkPattern.FindAllStringSubmatch(string(data), -1) {
			if noteStem(strings.TrimSpace(m[1])) == target {
				backlinks = append(backlinks, rel)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, NewToolError(ErrCodeInternal, "backlink scan failed: "+err.Error(), nil)
	}

	return backlinksResult{Path: params.Path, Backlinks: backlinks}, nil
}

// noteStem strips a path down to its base name without extension, the
// unit wikilinks reference regardless of how the link is nested.
func noteStem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
