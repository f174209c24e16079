package tools

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

type tagsParams struct {
	Path string `json:"path,omitempty"`
}

type tagsResult struct {
	Tags map[string][]string `json:"tags"` // tag -> note paths referencing it
}

var hashtagPattern = regexp.MustCompile(`#([A-Za-z0-9_/-]+)`)

// HandleTags scans vault-confined markdown files for hashtag-style tags
// (#project/foo) and returns the notes each tag appears in.
func HandleTags(ctx context.Context, tc *ToolContext, raw json.RawMessage) (any, error) {
	var params tagsParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, NewToolError(ErrCodeInvalidParams, "invalid parameters: "+err.Error(), nil)
		}
	}

	root := params.Path
	if root == "" {
		root = "."
	}
	resolvedRoot, err := tc.Validator.ResolveWithinVault(root)
	if err != nil {
		return nil, NewToolError(ErrCodePathEscape, err.Error(), nil)
	}

	tagIndex := make(map[string]map[string]bool)

	err = filepath.WalkDir(resolvedRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".md" {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		rel, err := relativeToVault(tc, p)
		if err != nil {
			return nil
		}

		for _, m := range hashtagPattern.FindAllStringSubmatch(string(data), -1) {
			tag := m[1]
			if tagIndex[tag] == nil {
				tagIndex[tag] = make(map[string]bool)
			}
			tagIndex[tag][rel] = true
		}
		return nil
	})
	if err != nil {
		return nil, NewToolError(ErrCodeInternal, "tag scan failed: "+err.Error(), nil)
	}

	result := tagsResult{Tags: make(map[string][]string, len(tagIndex))}
	for tag, notes := range tagIndex {
		list := make([]string, 0, len(notes))
		for note := range notes {
			list = append(list, note)
		}
		sort.Strings(list)
		result.Tags[tag] = list
	}

	return result, nil
}
