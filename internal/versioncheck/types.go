package versioncheck

import "time"

// Cache is the on-disk record of when the last check ran.
type Cache struct {
	LastCheckTime time.Time `json:"last_check_time"`
}

// githubRelease is the subset of the GitHub releases API response this
// package needs.
type githubRelease struct {
	TagName    string `json:"tag_name"`
	Prerelease bool   `json:"prerelease"`
}

// releaseURL is the GitHub API endpoint for sessionctl's latest release.
// A var, not a const, so tests can point it at a local server.
var releaseURL = "https://api.github.com/repos/sessionforge/sessionctl/releases/latest"

const (
	checkInterval = 24 * time.Hour
	httpTimeout   = 2 * time.Second
	cacheFileName = "version_check.json"
	configDirName = ".config/sessionctl"
)
