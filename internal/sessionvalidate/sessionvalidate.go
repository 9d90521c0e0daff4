// Package sessionvalidate checks identifiers that end up embedded in
// filesystem paths before they get there. A session name or branch name
// is attacker- or tool-controlled input in some callers (a hook payload,
// a forge webhook); letting "../../etc" through to sessionpath.Resolve
// would walk a session's workspace outside baseDir entirely.
package sessionvalidate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// pathSafe matches identifiers safe to join onto a filesystem path:
// alphanumerics, underscores, hyphens, and dots (for branch names like
// "feature/foo" this is deliberately stricter — see ValidateBranch).
var pathSafe = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// Session rejects an empty session name or one containing a path
// separator, which would let Resolve escape baseDir/sessions.
func Session(id string) error {
	if id == "" {
		return errors.New("session ID cannot be empty")
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("invalid session ID %q: contains path separators", id)
	}
	if id == "." || id == ".." {
		return fmt.Errorf("invalid session ID %q: reserved path segment", id)
	}
	return nil
}

// Backend rejects a storage backend name unsafe to use verbatim in a
// file extension or directory name (e.g. "sqlite", "postgres").
func Backend(id string) error {
	if id == "" {
		return nil
	}
	if !pathSafe.MatchString(id) {
		return fmt.Errorf("invalid backend name %q: must be alphanumeric with underscores/hyphens/dots only", id)
	}
	return nil
}

// ChangesetRef rejects a branch or changeset reference unsafe to pass to
// git as a refname component. Slashes are allowed here since real branch
// names commonly nest ("feature/foo"); ".." and control characters are
// not, since git itself treats ".." specially in refname resolution.
func ChangesetRef(ref string) error {
	if ref == "" {
		return errors.New("ref cannot be empty")
	}
	if strings.Contains(ref, "..") {
		return fmt.Errorf("invalid ref %q: contains \"..\"", ref)
	}
	if strings.ContainsAny(ref, " \t\n~^:?*[\\") {
		return fmt.Errorf("invalid ref %q: contains a character git refnames forbid", ref)
	}
	return nil
}
