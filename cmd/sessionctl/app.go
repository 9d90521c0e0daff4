// Package main is sessionctl's cobra CLI: thin command wiring over the
// session/changeset/approval core. A root command with PersistentPostRun
// telemetry tracking, one subcommand tree per concern, version/doctor as
// flat leaves.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sessionforge/sessionctl/internal/approval"
	"github.com/sessionforge/sessionctl/internal/changeset"
	"github.com/sessionforge/sessionctl/internal/config"
	"github.com/sessionforge/sessionctl/internal/repobackend"
	_ "github.com/sessionforge/sessionctl/internal/repobackend/githubpr"
	_ "github.com/sessionforge/sessionctl/internal/repobackend/gitlabmr"
	"github.com/sessionforge/sessionctl/internal/sessionstore"
	"github.com/sessionforge/sessionctl/internal/storage"
	"github.com/sessionforge/sessionctl/internal/storage/jsonfile"
	"github.com/sessionforge/sessionctl/internal/storage/pgstore"
	"github.com/sessionforge/sessionctl/internal/storage/sqlitestore"
	"github.com/sessionforge/sessionctl/internal/task"
)

// app bundles the resolved config and lazily-constructed core dependencies
// every subcommand needs, so each command file stays focused on its own
// flags and output formatting.
type app struct {
	baseDir  string
	settings *config.Settings
	store    sessionstore.Store
	engine   *approval.Engine
}

// defaultBaseDir is ~/.sessionctl, used when settings.BaseDir is unset.
func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sessionctl"
	}
	return filepath.Join(home, ".sessionctl")
}

func newApp() (*app, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	settings, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	baseDir := settings.BaseDir
	if baseDir == "" {
		baseDir = defaultBaseDir()
	}

	backend, err := openStorageBackend(context.Background(), settings, baseDir)
	if err != nil {
		return nil, err
	}

	store := sessionstore.New(backend, baseDir)
	return &app{
		baseDir:  baseDir,
		settings: settings,
		store:    store,
		engine:   approval.New(store, task.NoopStore{}),
	}, nil
}

func openStorageBackend(ctx context.Context, settings *config.Settings, baseDir string) (storage.Backend, error) {
	var backend storage.Backend
	var err error

	switch settings.Backend {
	case "sqlite":
		path := settings.SQLitePath
		if path == "" {
			path = filepath.Join(baseDir, "sessions.db")
		}
		backend, err = sqlitestore.New(path)
	case "postgres":
		backend, err = pgstore.New(ctx, settings.PostgresDSN)
	default:
		backend = jsonfile.New(filepath.Join(baseDir, "sessions.json"))
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s storage backend: %w", settings.Backend, err)
	}

	if _, err := backend.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing storage backend: %w", err)
	}
	return backend, nil
}

// changesetAdapter resolves the changeset.Adapter for repoURL, threading
// forge credentials from settings.
func (a *app) changesetAdapter(repoURL, workdir string) (changeset.Adapter, error) {
	cfg := repobackend.Config{Workdir: workdir}
	switch {
	case a.settings.GitHubToken != "":
		cfg.Token = a.settings.GitHubToken
	case a.settings.GitLabToken != "":
		cfg.Token = a.settings.GitLabToken
	}
	return changeset.Select(repoURL, workdir, cfg)
}
