package tools

// RegisterAllTools registers the vault's tool surface with the registry.
func RegisterAllTools(r *Registry) {
	r.MustRegister(ToolDefinition{
		Name:        "vault.read",
		Description: "Read the full text content of a note",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"path": map[string]any{"type": "string"}},
			"required":   []string{"path"},
		},
	}, HandleRead)

	r.MustRegister(ToolDefinition{
		Name:        "vault.write",
		Description: "Create or overwrite a note, scheduling the change for commit",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string"},
				"content": map[string]any{"type": "string"},
			},
			"required": []string{"path", "content"},
		},
	}, HandleWrite)

	r.MustRegister(ToolDefinition{
		Name:        "vault.grep",
		Description: "Search notes under a path for a regular expression",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{"type": "string"},
				"path":    map[string]any{"type": "string"},
			},
			"required": []string{"pattern"},
		},
	}, HandleGrep)

	r.MustRegister(ToolDefinition{
		Name:        "vault.tags",
		Description: "List hashtag-style tags and the notes each appears in",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"path": map[string]any{"type": "string"}},
		},
	}, HandleTags)

	r.MustRegister(ToolDefinition{
		Name:        "vault.backlinks",
		Description: "List notes that wikilink to the given note",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"path": map[string]any{"type": "string"}},
			"required":   []string{"path"},
		},
	}, HandleBacklinks)
}
