// Package committrailer formats and parses the git trailers the local
// Repository Backend stamps onto prepared merge commits, so a commit in
// the merged history can be traced back to the session and changeset
// that produced it without consulting the session registry.
package committrailer

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// SessionTrailerKey names the session that produced a commit.
	SessionTrailerKey = "Session-Id"
	// ChangesetTrailerKey names the changeset (PR branch) a merge commit closes.
	ChangesetTrailerKey = "Changeset-Id"
)

var (
	sessionTrailerRegex   = regexp.MustCompile(SessionTrailerKey + `:\s*(.+)`)
	changesetTrailerRegex = regexp.MustCompile(ChangesetTrailerKey + `:\s*(.+)`)
)

// Format appends Session-Id and Changeset-Id trailers to message, in the
// blank-line-then-key:-value form git trailer tooling expects.
func Format(message, session, changesetID string) string {
	var sb strings.Builder
	sb.WriteString(message)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("%s: %s\n", SessionTrailerKey, session))
	sb.WriteString(fmt.Sprintf("%s: %s\n", ChangesetTrailerKey, changesetID))
	return sb.String()
}

// ParseSession extracts the Session-Id trailer from a commit message.
func ParseSession(commitMessage string) (string, bool) {
	m := sessionTrailerRegex.FindStringSubmatch(commitMessage)
	if len(m) > 1 {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

// ParseChangeset extracts the Changeset-Id trailer from a commit message.
func ParseChangeset(commitMessage string) (string, bool) {
	m := changesetTrailerRegex.FindStringSubmatch(commitMessage)
	if len(m) > 1 {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}
