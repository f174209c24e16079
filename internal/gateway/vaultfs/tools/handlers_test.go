package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/erauner12/vaultgw/internal/gateway/vaultfs"
)

type fakeScheduler struct {
	descriptions []string
}

func (f *fakeScheduler) Schedule(description string) {
	f.descriptions = append(f.descriptions, description)
}

func newTestContext(t *testing.T, vaultRoot string) (*ToolContext, *fakeScheduler) {
	t.Helper()
	validator, err := vaultfs.NewValidator(vaultRoot, []string{".git"})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	sched := &fakeScheduler{}
	return NewToolContext(nil, "sess-1", validator, sched), sched
}

func writeVaultFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestHandleRead_ReturnsContent(t *testing.T) {
	root := t.TempDir()
	writeVaultFile(t, root, "note.md", "hello vault")
	tc, _ := newTestContext(t, root)

	raw, _ := json.Marshal(readParams{Path: "note.md"})
	out, err := HandleRead(context.Background(), tc, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := out.(readResult)
	if result.Content != "hello vault" {
		t.Errorf("expected content %q, got %q", "hello vault", result.Content)
	}
}

func TestHandleRead_MissingFileReturnsNotFound(t *testing.T) {
	root := t.TempDir()
	tc, _ := newTestContext(t, root)

	raw, _ := json.Marshal(readParams{Path: "missing.md"})
	_, err := HandleRead(context.Background(), tc, raw)
	toolErr, ok := err.(*ToolError)
	if !ok || toolErr.Code != ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND tool error, got %v", err)
	}
}

func TestHandleRead_PathEscapeRejected(t *testing.T) {
	root := t.TempDir()
	tc, _ := newTestContext(t, root)

	raw, _ := json.Marshal(readParams{Path: "../../etc/passwd"})
	_, err := HandleRead(context.Background(), tc, raw)
	toolErr, ok := err.(*ToolError)
	if !ok || toolErr.Code != ErrCodePathEscape {
		t.Fatalf("expected PATH_ESCAPE tool error, got %v", err)
	}
}

func TestHandleWrite_CreatesFileAndSchedulesCommit(t *testing.T) {
	root := t.TempDir()
	tc, sched := newTestContext(t, root)

	raw, _ := json.Marshal(writeParams{Path: "sub/new.md", Content: "content here"})
	out, err := HandleWrite(context.Background(), tc, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := out.(writeResult)
	if result.Written != len("content here") {
		t.Errorf("expected bytesWritten %d, got %d", len("content here"), result.Written)
	}

	data, err := os.ReadFile(filepath.Join(root, "sub/new.md"))
	if err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
	if string(data) != "content here" {
		t.Errorf("unexpected file content: %q", data)
	}

	if len(sched.descriptions) != 1 {
		t.Errorf("expected one scheduled description, got %d", len(sched.descriptions))
	}
}

func TestHandleWrite_RequiresPath(t *testing.T) {
	root := t.TempDir()
	tc, _ := newTestContext(t, root)

	raw, _ := json.Marshal(writeParams{Content: "x"})
	_, err := HandleWrite(context.Background(), tc, raw)
	toolErr, ok := err.(*ToolError)
	if !ok || toolErr.Code != ErrCodeInvalidParams {
		t.Fatalf("expected INVALID_PARAMS tool error, got %v", err)
	}
}

func TestHandleGrep_FindsMatchesAcrossFiles(t *testing.T) {
	root := t.TempDir()
	writeVaultFile(t, root, "a.md", "line one\nTODO: fix this\nline three")
	writeVaultFile(t, root, "sub/b.md", "nothing here")
	tc, _ := newTestContext(t, root)

	raw, _ := json.Marshal(grepParams{Pattern: "TODO"})
	out, err := HandleGrep(context.Background(), tc, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := out.(grepResult)
	if len(result.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(result.Matches))
	}
	if result.Matches[0].Path != "a.md" || result.Matches[0].Line != 2 {
		t.Errorf("unexpected match: %+v", result.Matches[0])
	}
}

func TestHandleGrep_RequiresPattern(t *testing.T) {
	root := t.TempDir()
	tc, _ := newTestContext(t, root)

	raw, _ := json.Marshal(grepParams{})
	_, err := HandleGrep(context.Background(), tc, raw)
	toolErr, ok := err.(*ToolError)
	if !ok || toolErr.Code != ErrCodeInvalidParams {
		t.Fatalf("expected INVALID_PARAMS tool error, got %v", err)
	}
}

func TestHandleTags_IndexesHashtagsAcrossNotes(t *testing.T) {
	root := t.TempDir()
	writeVaultFile(t, root, "a.md", "this is #project/alpha work")
	writeVaultFile(t, root, "b.md", "also #project/alpha and #urgent")
	tc, _ := newTestContext(t, root)

	raw, _ := json.Marshal(tagsParams{})
	out, err := HandleTags(context.Background(), tc, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := out.(tagsResult)

	notes := result.Tags["project/alpha"]
	if len(notes) != 2 {
		t.Errorf("expected 2 notes tagged project/alpha, got %v", notes)
	}
	if len(result.Tags["urgent"]) != 1 {
		t.Errorf("expected 1 note tagged urgent, got %v", result.Tags["urgent"])
	}
}

func TestHandleBacklinks_FindsWikilinkReferences(t *testing.T) {
	root := t.TempDir()
	writeVaultFile(t, root, "target.md", "the target note")
	writeVaultFile(t, root, "linker.md", "see [[target]] for details")
	writeVaultFile(t, root, "unrelated.md", "nothing to see")
	tc, _ := newTestContext(t, root)

	raw, _ := json.Marshal(backlinksParams{Path: "target.md"})
	out, err := HandleBacklinks(context.Background(), tc, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := out.(backlinksResult)
	if len(result.Backlinks) != 1 || result.Backlinks[0] != "linker.md" {
		t.Errorf("expected backlinks [linker.md], got %v", result.Backlinks)
	}
}

func TestHandleBacklinks_RequiresPath(t *testing.T) {
	root := t.TempDir()
	tc, _ := newTestContext(t, root)

	raw, _ := json.Marshal(backlinksParams{})
	_, err := HandleBacklinks(context.Background(), tc, raw)
	toolErr, ok := err.(*ToolError)
	if !ok || toolErr.Code != ErrCodeInvalidParams {
		t.Fatalf("expected INVALID_PARAMS tool error, got %v", err)
	}
}
