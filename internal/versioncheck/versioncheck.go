// Package versioncheck notifies the user when a newer sessionctl release is
// available, at most once per 24 hours, using a small on-disk cache so the
// GitHub API is not hit on every invocation. Failures here are always
// silent: a broken network or stale cache must never interrupt a real
// command, the same posture teacher's own versioncheck package takes.
package versioncheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/sessionforge/sessionctl/internal/obslog"
)

// CheckAndNotify checks for a newer release and prints a notification to
// cmd's output stream if one is found. It is silent on every error path.
func CheckAndNotify(ctx context.Context, cmd *cobra.Command, currentVersion string) {
	if cmd.Hidden {
		return
	}
	if currentVersion == "dev" || currentVersion == "" {
		return
	}

	if err := ensureConfigDir(); err != nil {
		return
	}

	cache, err := loadCache()
	if err != nil {
		cache = &Cache{}
	}
	if time.Since(cache.LastCheckTime) < checkInterval {
		return
	}

	latest, fetchErr := fetchLatestVersion(ctx)

	cache.LastCheckTime = time.Now()
	if err := saveCache(cache); err != nil {
		obslog.Debug(ctx, "version check: failed to save cache", "error", err.Error())
	}

	if fetchErr != nil {
		obslog.Debug(ctx, "version check: failed to fetch latest version", "error", fetchErr.Error())
		return
	}

	if isOutdated(currentVersion, latest) {
		printNotification(cmd, currentVersion, latest)
	}
}

func configDirPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

func ensureConfigDir() error {
	dir, err := configDirPath()
	if err != nil {
		return err
	}
	//nolint:gosec // dir is under the user's home, 0o755 is appropriate
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return nil
}

func cacheFilePath() (string, error) {
	dir, err := configDirPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, cacheFileName), nil
}

func loadCache() (*Cache, error) {
	path, err := cacheFilePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // cacheFilePath is not attacker-controlled
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}
	var cache Cache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parsing cache: %w", err)
	}
	return &cache, nil
}

func saveCache(cache *Cache) error {
	path, err := cacheFilePath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".version_check_tmp_")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming cache file: %w", err)
	}
	return nil
}

func fetchLatestVersion(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, httpTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releaseURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "sessionctl")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching release info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	return parseRelease(body)
}

func parseRelease(body []byte) (string, error) {
	var release githubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return "", fmt.Errorf("parsing JSON: %w", err)
	}
	if release.Prerelease {
		return "", errors.New("only prerelease versions available")
	}
	if release.TagName == "" {
		return "", errors.New("empty tag name")
	}
	return release.TagName, nil
}

func isOutdated(current, latest string) bool {
	if !strings.HasPrefix(current, "v") {
		current = "v" + current
	}
	if !strings.HasPrefix(latest, "v") {
		latest = "v" + latest
	}
	return semver.Compare(current, latest) < 0
}

func updateCommand() string {
	execPath, err := os.Executable()
	if err != nil {
		return "curl -fsSL https://sessionctl.dev/install.sh | bash"
	}
	realPath, err := filepath.EvalSymlinks(execPath)
	if err != nil {
		realPath = execPath
	}
	if strings.Contains(realPath, "/Cellar/") || strings.Contains(realPath, "/homebrew/") {
		return "brew upgrade sessionctl"
	}
	return "curl -fsSL https://sessionctl.dev/install.sh | bash"
}

func printNotification(cmd *cobra.Command, current, latest string) {
	msg := fmt.Sprintf("\nA newer version of sessionctl is available: %s (current: %s)\nRun '%s' to update.\n",
		latest, current, updateCommand())
	fmt.Fprint(cmd.OutOrStdout(), msg)
}
