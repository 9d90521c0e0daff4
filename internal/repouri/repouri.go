// Package repouri parses any repository reference — HTTPS/SSH remote,
// file:// URL, bare local path, or "owner/repo" shorthand — into a typed,
// normalized identifier. It is the single normalization point the rest of
// the core uses for source URIs; it is pure and total (Parse never errors),
// dependency-free beyond the standard library, matching the validation
// package's "no dependencies, to avoid import cycles" discipline.
package repouri

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Type is the tagged variant over the recognized URI forms.
type Type string

const (
	TypeHTTPS            Type = "HTTPS"
	TypeSSH              Type = "SSH"
	TypeFile             Type = "FILE"
	TypeLocalPath        Type = "LOCAL_PATH"
	TypeHostedShorthand  Type = "HOSTED_SHORTHAND"
)

// URI is the parsed, normalized result.
type URI struct {
	Type       Type
	Scheme     string
	Host       string
	Owner      string
	Repo       string
	Path       string
	Normalized string
	Original   string
}

// sshPattern matches the scp-like SSH shorthand: user@host:owner/repo(.git)?
var sshPattern = regexp.MustCompile(`^([^@]+)@([^:]+):([^/]+)/([^/]+?)(\.git)?$`)

// shorthandPattern matches exactly one "/" with no leading slash and no scheme.
var shorthandPattern = regexp.MustCompile(`^[^/\s]+/[^/\s]+$`)

// Parse is total: every input string produces a URI, falling back to
// TypeLocalPath when nothing more specific matches. Recognition order:
// file:// URL, then scp-style SSH shorthand, then scheme URL with at least
// two path segments, then bare "owner/repo" shorthand, else a local path.
func Parse(s string) URI {
	original := s

	if strings.HasPrefix(s, "file://") {
		p := strings.TrimPrefix(s, "file://")
		return URI{
			Type:       TypeFile,
			Path:       p,
			Normalized: "local/" + filepath.Base(p),
			Original:   original,
		}
	}

	if m := sshPattern.FindStringSubmatch(s); m != nil {
		owner, repo := m[3], m[4]
		return URI{
			Type:       TypeSSH,
			Host:       m[2],
			Owner:      owner,
			Repo:       repo,
			Normalized: owner + "/" + repo,
			Original:   original,
		}
	}

	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			segments := pathSegments(u.Path)
			if len(segments) >= 2 {
				owner := segments[0]
				repo := strings.TrimSuffix(segments[1], ".git")
				return URI{
					Type:       TypeHTTPS,
					Scheme:     u.Scheme,
					Host:       u.Host,
					Owner:      owner,
					Repo:       repo,
					Normalized: owner + "/" + repo,
					Original:   original,
				}
			}
		}
		// Malformed scheme URL or not enough path segments: fall through to
		// LOCAL_PATH rather than erroring — Parse is total.
		return localPath(original)
	}

	if shorthandPattern.MatchString(s) {
		parts := strings.SplitN(s, "/", 2)
		owner, repo := parts[0], strings.TrimSuffix(parts[1], ".git")
		return URI{
			Type:       TypeHostedShorthand,
			Owner:      owner,
			Repo:       repo,
			Normalized: owner + "/" + repo,
			Original:   original,
		}
	}

	return localPath(original)
}

func localPath(s string) URI {
	return URI{
		Type:       TypeLocalPath,
		Path:       s,
		Normalized: "local/" + filepath.Base(s),
		Original:   s,
	}
}

func pathSegments(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// IsLocal reports whether the URI type is FILE or LOCAL_PATH.
func (u URI) IsLocal() bool {
	return u.Type == TypeFile || u.Type == TypeLocalPath
}

// ValidationResult is the result of Validate.
type ValidationResult struct {
	Valid      bool
	Error      string
	Components *URI
}

// Validate checks structural validity and, for local types, that the path
// exists on disk.
func Validate(u URI) ValidationResult {
	if u.IsLocal() {
		p := u.Path
		if p == "" {
			return ValidationResult{Valid: false, Error: "empty local path"}
		}
		if _, err := os.Stat(p); err != nil {
			return ValidationResult{Valid: false, Error: fmt.Sprintf("path does not exist: %s", p)}
		}
		return ValidationResult{Valid: true, Components: &u}
	}

	if u.Owner == "" || u.Repo == "" {
		return ValidationResult{Valid: false, Error: "missing owner/repo"}
	}
	return ValidationResult{Valid: true, Components: &u}
}

// Convert re-renders u in the target scheme/host form. Returns false when
// owner/repo aren't available (e.g. converting a local path to a remote
// form) or the target type is itself local.
func Convert(u URI, target Type, host string) (string, bool) {
	if target == TypeLocalPath || target == TypeFile {
		return "", false
	}
	if u.Owner == "" || u.Repo == "" {
		return "", false
	}

	switch target {
	case TypeHTTPS:
		h := host
		if h == "" {
			h = u.Host
		}
		if h == "" {
			h = "github.com"
		}
		return fmt.Sprintf("https://%s/%s/%s.git", h, u.Owner, u.Repo), true
	case TypeSSH:
		h := host
		if h == "" {
			h = u.Host
		}
		if h == "" {
			h = "github.com"
		}
		return fmt.Sprintf("git@%s:%s/%s.git", h, u.Owner, u.Repo), true
	case TypeHostedShorthand:
		return u.Owner + "/" + u.Repo, true
	default:
		return "", false
	}
}

// ExpandShorthand renders a "owner/repo"-shaped normalized string into a
// full URI string for the given scheme ("https" or "ssh"), using host for
// remote forms. Returns "" for malformed input (not exactly one "/").
func ExpandShorthand(normalized string, scheme string, host string) string {
	parts := strings.SplitN(normalized, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	owner, repo := parts[0], parts[1]
	if host == "" {
		host = "github.com"
	}
	switch scheme {
	case "ssh":
		return fmt.Sprintf("git@%s:%s/%s.git", host, owner, repo)
	default:
		return fmt.Sprintf("https://%s/%s/%s.git", host, owner, repo)
	}
}
