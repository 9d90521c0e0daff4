// Package sessionpath computes the canonical workspace path for a session.
// This is the single source of truth both the session registry and the
// repository backends use, so that the git working directory a backend
// execs into always matches the path the registry reports — a historical
// class of failures came from two different computations of this path
// disagreeing.
package sessionpath

import "path/filepath"

// sessionsSubdir is the flat layout directory name under baseDir.
const sessionsSubdir = "sessions"

// Resolve returns the canonical workspace path for session under baseDir:
// baseDir + "/sessions/" + session. It never consults repoName — the flat
// layout is independent of which repository a session was cloned from.
func Resolve(baseDir, session string) string {
	return filepath.Join(baseDir, sessionsSubdir, session)
}

// LegacyResolve returns the pre-migration per-repo layout path:
// baseDir + "/git/" + repoName + "/sessions/" + session. It is exported only
// for internal/migrate's detection phase; nothing else in this module
// should ever construct or depend on this path.
func LegacyResolve(baseDir, repoName, session string) string {
	return filepath.Join(baseDir, "git", repoName, sessionsSubdir, session)
}
