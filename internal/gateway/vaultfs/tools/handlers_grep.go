package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

type grepParams struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

type grepMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

type grepResult struct {
	Matches []grepMatch `json:"matches"`
}

const maxGrepMatches = 500

// HandleGrep searches vault-confined files for a regular expression,
// walking from path (the vault root if unset).
func HandleGrep(ctx context.Context, tc *ToolContext, raw json.RawMessage) (any, error) {
	var params grepParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, "invalid parameters: "+err.Error(), nil)
	}
	if params.Pattern == "" {
		return nil, NewToolError(ErrCodeInvalidParams, "pattern is required", nil)
	}

	re, err := regexp.Compile(params.Pattern)
	if err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, "invalid pattern: "+err.Error(), nil)
	}

	root := params.Path
	if root == "" {
		root = "."
	}
	resolvedRoot, err := tc.Validator.ResolveWithinVault(root)
	if err != nil {
		return nil, NewToolError(ErrCodePathEscape, err.Error(), nil)
	}

	result := grepResult{Matches: []grepMatch{}}

	err = filepath.WalkDir(resolvedRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if len(result.Matches) >= maxGrepMatches {
			return filepath.SkipAll
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(p) != ".md" {
			return nil
		}

		rel, err := relativeToVault(tc, p)
		if err != nil {
			return nil
		}
		grepFile(re, p, rel, &result)
		return nil
	})
	if err != nil {
		return nil, NewToolError(ErrCodeInternal, "grep walk failed: "+err.Error(), nil)
	}

	return result, nil
}

func grepFile(re *regexp.Regexp, absPath, relPath string, result *grepResult) {
	f, err := os.Open(absPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(result.Matches) >= maxGrepMatches {
			return
		}
		line := scanner.Text()
		if re.MatchString(line) {
			result.Matches = append(result.Matches, grepMatch{Path: relPath, Line: lineNo, Text: line})
		}
	}
}

// relativeToVault returns p relative to the validator's vault root. Used
// to report portable paths back to the caller rather than absolute ones.
func relativeToVault(tc *ToolContext, p string) (string, error) {
	root, err := tc.Validator.ResolveWithinVault(".")
	if err != nil {
		return "", err
	}
	return filepath.Rel(root, p)
}
