// Package config loads sessionctl's settings file: a base file plus a
// local override file, defaults applied after merge, and a handful of
// env-var escape hatches for credentials that shouldn't live in a
// committed file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultBackendKind is the storage backend used when none is configured.
const DefaultBackendKind = "jsonfile"

const (
	// SettingsFile is the path to the sessionctl settings file, relative to
	// the base directory.
	SettingsFile = "sessionctl.json"
	// SettingsLocalFile is a local override file, not meant to be committed.
	SettingsLocalFile = "sessionctl.local.json"
)

// Settings represents the sessionctl.json configuration.
type Settings struct {
	// BaseDir is the root directory sessions and their workspaces resolve
	// under (sessionpath.Resolve's baseDir parameter).
	BaseDir string `json:"baseDir"`

	// Backend selects the storage.Backend implementation: "jsonfile",
	// "sqlite", or "postgres".
	Backend string `json:"backend"`

	// SQLitePath is the database file path, used when Backend == "sqlite".
	SQLitePath string `json:"sqlitePath,omitempty"`

	// PostgresDSN is the connection string, used when Backend == "postgres".
	// Overridable by SESSIONCTL_PG_DSN so it never needs to live in the
	// committed settings file.
	PostgresDSN string `json:"postgresDsn,omitempty"`

	// LogLevel sets logging verbosity (debug, info, warn, error). Can be
	// overridden by SESSIONCTL_LOG_LEVEL.
	LogLevel string `json:"logLevel,omitempty"`

	// DefaultRepoBackend selects the repobackend.Factory key used when a
	// session isn't pinned to a specific one ("localgit", "githubpr",
	// "gitlabmr").
	DefaultRepoBackend string `json:"defaultRepoBackend,omitempty"`

	// GitHubToken authenticates the githubpr backend. Overridable by
	// SESSIONCTL_GITHUB_TOKEN / GITHUB_TOKEN so it never needs to live in
	// the committed settings file.
	GitHubToken string `json:"githubToken,omitempty"`

	// GitLabToken authenticates the gitlabmr backend. Overridable by
	// SESSIONCTL_GITLAB_TOKEN.
	GitLabToken string `json:"gitlabToken,omitempty"`

	// Telemetry controls anonymous usage analytics. nil = not asked yet,
	// true = opted in, false = opted out.
	Telemetry *bool `json:"telemetry,omitempty"`
}

// Load loads settings from dir/SettingsFile, then applies any overrides
// from dir/SettingsLocalFile if present, then env var overrides. Returns
// defaulted settings if neither file exists.
func Load(dir string) (*Settings, error) {
	settings, err := loadFromFile(filepath.Join(dir, SettingsFile))
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	localData, err := os.ReadFile(filepath.Join(dir, SettingsLocalFile)) //nolint:gosec // path built from caller-controlled dir
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading local settings file: %w", err)
		}
	} else if err := mergeJSON(settings, localData); err != nil {
		return nil, fmt.Errorf("merging local settings: %w", err)
	}

	applyEnvOverrides(settings)
	applyDefaults(settings)
	return settings, nil
}

func loadFromFile(path string) (*Settings, error) {
	settings := &Settings{Backend: DefaultBackendKind}

	data, err := os.ReadFile(path) //nolint:gosec // path built from caller-controlled dir
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}
	return settings, nil
}

// mergeJSON overlays only the fields present in data onto settings.
func mergeJSON(settings *Settings, data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	stringField := func(key string, dst *string) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("parsing %s field: %w", key, err)
		}
		if s != "" {
			*dst = s
		}
		return nil
	}

	for key, dst := range map[string]*string{
		"baseDir":            &settings.BaseDir,
		"backend":            &settings.Backend,
		"sqlitePath":         &settings.SQLitePath,
		"postgresDsn":        &settings.PostgresDSN,
		"logLevel":           &settings.LogLevel,
		"defaultRepoBackend": &settings.DefaultRepoBackend,
		"githubToken":        &settings.GitHubToken,
		"gitlabToken":        &settings.GitLabToken,
	} {
		if err := stringField(key, dst); err != nil {
			return err
		}
	}

	if telemetryRaw, ok := raw["telemetry"]; ok {
		var t bool
		if err := json.Unmarshal(telemetryRaw, &t); err != nil {
			return fmt.Errorf("parsing telemetry field: %w", err)
		}
		settings.Telemetry = &t
	}

	return nil
}

func applyEnvOverrides(s *Settings) {
	if v := os.Getenv("SESSIONCTL_LOG_LEVEL"); v != "" {
		s.LogLevel = v
	}
	if v := os.Getenv("SESSIONCTL_PG_DSN"); v != "" {
		s.PostgresDSN = v
	}
	if v := os.Getenv("SESSIONCTL_GITHUB_TOKEN"); v != "" {
		s.GitHubToken = v
	} else if v := os.Getenv("GITHUB_TOKEN"); v != "" && s.GitHubToken == "" {
		s.GitHubToken = v
	}
	if v := os.Getenv("SESSIONCTL_GITLAB_TOKEN"); v != "" {
		s.GitLabToken = v
	}
}

func applyDefaults(s *Settings) {
	if s.Backend == "" {
		s.Backend = DefaultBackendKind
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.DefaultRepoBackend == "" {
		s.DefaultRepoBackend = "localgit"
	}
}

// TelemetryEnabled reports whether telemetry is currently opted in.
// Returns false (disabled) if never configured.
func (s *Settings) TelemetryEnabled() bool {
	return s.Telemetry != nil && *s.Telemetry
}
