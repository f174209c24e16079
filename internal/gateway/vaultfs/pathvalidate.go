// Package vaultfs implements C2 (path confinement); the ordinary
// filesystem/text tool bodies that sit behind the protocol's tools/call
// dispatch live in its tools subpackage. Confinement is grounded on the clean-then-confine-then-
// symlink-check pattern used for static asset serving elsewhere in the
// retrieved corpus (filepath.Clean + filepath.EvalSymlinks + prefix check),
// hardened to also reject forbidden path components and to walk up to the
// nearest existing ancestor for not-yet-created paths.
package vaultfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathEscapeError is returned whenever a candidate path fails confinement.
type PathEscapeError struct {
	Path   string
	Reason string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("path escape: %s (%s)", e.Path, e.Reason)
}

func newEscape(path, reason string) error {
	return &PathEscapeError{Path: path, Reason: reason}
}

// Validator confines user-supplied paths to a vault root.
type Validator struct {
	root         string // canonical, absolute, no trailing slash
	forbiddenDir []string
}

// NewValidator canonicalizes vaultRoot once at construction. vaultRoot must
// already exist; a vault that doesn't exist yet is a configuration error,
// not a per-request one.
func NewValidator(vaultRoot string, forbiddenDirNames []string) (*Validator, error) {
	canon, err := canonicalizeExisting(vaultRoot)
	if err != nil {
		return nil, fmt.Errorf("vault root does not resolve: %w", err)
	}
	return &Validator{root: strings.TrimRight(canon, string(filepath.Separator)), forbiddenDir: forbiddenDirNames}, nil
}

// ResolveWithinVault resolves userPath against the vault root, enforcing:
//   - userPath is non-empty and non-whitespace
//   - the lexically normalized result is the root itself or a descendant
//   - no path component equals a forbidden directory name, and the first
//     component does not have a forbidden name as a prefix
//   - symlinks (on the resolved path, or its nearest existing ancestor)
//     resolve to a path that still satisfies confinement
func (v *Validator) ResolveWithinVault(userPath string) (string, error) {
	if strings.TrimSpace(userPath) == "" {
		return "", newEscape(userPath, "empty path")
	}

	if err := v.checkForbiddenComponents(userPath); err != nil {
		return "", err
	}

	joined := filepath.Join(v.root, userPath)
	cleaned := filepath.Clean(joined)

	if !v.isWithinRoot(cleaned) {
		return "", newEscape(userPath, "escapes vault root")
	}

	real, err := v.canonicalizeNearestAncestor(cleaned)
	if err != nil {
		return "", newEscape(userPath, "ancestor resolution failed: "+err.Error())
	}
	if !v.isWithinRoot(real) {
		return "", newEscape(userPath, "symlink escapes vault root")
	}

	return cleaned, nil
}

func (v *Validator) isWithinRoot(p string) bool {
	if p == v.root {
		return true
	}
	return strings.HasPrefix(p, v.root+string(filepath.Separator))
}

// checkForbiddenComponents rejects components that equal a forbidden
// directory name, and rejects a first component that merely has a
// forbidden name as a prefix (defeats aliasing like ".git-backup" used as
// a top-level escape hatch).
func (v *Validator) checkForbiddenComponents(userPath string) error {
	clean := filepath.ToSlash(filepath.Clean(userPath))
	parts := strings.Split(clean, "/")

	for i, part := range parts {
		if part == "" || part == "." {
			continue
		}
		for _, forbidden := range v.forbiddenDir {
			if part == forbidden {
				return newEscape(userPath, "forbidden path component: "+forbidden)
			}
			if i == 0 && strings.HasPrefix(part, forbidden) {
				return newEscape(userPath, "first component aliases forbidden directory: "+forbidden)
			}
		}
	}
	return nil
}

// canonicalizeNearestAncestor resolves symlinks on p if it exists; otherwise
// it walks up to the nearest existing ancestor, resolves symlinks there, and
// re-appends the missing suffix. The walk always terminates because
// filepath.Dir eventually reaches the filesystem root, which always exists.
func (v *Validator) canonicalizeNearestAncestor(p string) (string, error) {
	if _, err := os.Lstat(p); err == nil {
		return filepath.EvalSymlinks(p)
	}

	var missing []string
	cur := p
	for {
		parent := filepath.Dir(cur)
		if parent == cur {
			// Reached filesystem root without finding an existing ancestor.
			return "", errors.New("no existing ancestor found")
		}
		missing = append([]string{filepath.Base(cur)}, missing...)
		cur = parent

		if _, err := os.Lstat(cur); err == nil {
			break
		}
	}

	realAncestor, err := filepath.EvalSymlinks(cur)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{realAncestor}, missing...)...), nil
}

func canonicalizeExisting(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
