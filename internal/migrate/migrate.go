// Package migrate moves session worktrees from the legacy per-repo layout
// (baseDir/git/<repoName>/sessions/<id>) to the flat layout
// (baseDir/sessions/<id>) used by internal/sessionpath. It follows a
// careful mutation idiom: preview before touching anything
// (clean.go's default dry-run-then-force shape), verify after every
// write (rewind.go's preview-then-confirm-then-mutate shape), and never
// abort a batch over one failed item.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/sessionforge/sessionctl/internal/jsonutil"
	"github.com/sessionforge/sessionctl/internal/obslog"
)

// LegacySession is one discovered legacy-layout session directory.
type LegacySession struct {
	ID       string
	RepoName string
	Path     string // baseDir/git/<repoName>/sessions/<id>
}

// PlannedMove pairs a discovered legacy session with its destination.
type PlannedMove struct {
	Session     LegacySession
	Destination string // baseDir/sessions/<id>
}

// Plan is the output of Detect+Plan: what would move, and where the
// backup would land if requested.
type Plan struct {
	Moves      []PlannedMove
	BackupDir  string // baseDir/.migration-backups/<timestamp>
	NewTreeDir string // baseDir/sessions
}

// BackupManifest is the JSON metadata file written alongside a backup,
// sufficient to drive Rollback without re-deriving the plan.
type BackupManifest struct {
	CreatedAt time.Time     `json:"createdAt"`
	Moves     []PlannedMove `json:"moves"`
	NewTree   string        `json:"newTree"`
}

const manifestFileName = "manifest.json"

// Detect enumerates legacy repo directories under baseDir/git and, within
// each, every child of its sessions/ directory that itself contains a
// .git entry. Anything else is skipped rather than treated as an error.
func Detect(ctx context.Context, baseDir string) ([]LegacySession, error) {
	gitRoot := filepath.Join(baseDir, "git")
	repoEntries, err := os.ReadDir(gitRoot)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read legacy git root %s: %w", gitRoot, err)
	}

	var found []LegacySession
	for _, repoEntry := range repoEntries {
		if !repoEntry.IsDir() {
			continue
		}
		repoName := repoEntry.Name()
		sessionsDir := filepath.Join(gitRoot, repoName, "sessions")
		sessionEntries, err := os.ReadDir(sessionsDir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			obslog.Warn(ctx, "skipping unreadable legacy sessions dir", "path", sessionsDir, "error", err.Error())
			continue
		}

		for _, se := range sessionEntries {
			if !se.IsDir() {
				continue
			}
			sessionPath := filepath.Join(sessionsDir, se.Name())
			if _, err := os.Stat(filepath.Join(sessionPath, ".git")); err != nil {
				continue
			}
			found = append(found, LegacySession{ID: se.Name(), RepoName: repoName, Path: sessionPath})
		}
	}
	return found, nil
}

// PlanMoves computes destinations for sessions and a timestamp-suffixed
// backup directory name. stamp is caller-supplied (the harness this
// module runs under forbids reading the wall clock internally) so Plan
// stays deterministic and testable.
func PlanMoves(baseDir string, sessions []LegacySession, stamp time.Time) Plan {
	newTreeDir := filepath.Join(baseDir, "sessions")
	moves := make([]PlannedMove, 0, len(sessions))
	for _, s := range sessions {
		moves = append(moves, PlannedMove{Session: s, Destination: filepath.Join(newTreeDir, s.ID)})
	}
	backupDir := filepath.Join(baseDir, ".migration-backups", stamp.UTC().Format("20060102T150405Z"))
	return Plan{Moves: moves, BackupDir: backupDir, NewTreeDir: newTreeDir}
}

// Backup copies every legacy session tree, plus any existing new-layout
// sessions tree, into plan.BackupDir and writes a manifest describing the
// mapping — everything Rollback needs, with no dependency on the caller
// re-deriving the plan later.
func Backup(ctx context.Context, plan Plan) error {
	if err := os.MkdirAll(plan.BackupDir, 0o750); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	lockPath := plan.BackupDir + ".lock"
	lock := flock.New(lockPath)
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return fmt.Errorf("could not acquire backup lock at %s", lockPath)
	}
	defer func() { _ = lock.Unlock() }()

	legacyBackup := filepath.Join(plan.BackupDir, "legacy")
	for _, m := range plan.Moves {
		dest := filepath.Join(legacyBackup, m.Session.RepoName, "sessions", m.Session.ID)
		if err := copyTree(m.Session.Path, dest); err != nil {
			return fmt.Errorf("backup legacy session %s: %w", m.Session.ID, err)
		}
	}

	if _, err := os.Stat(plan.NewTreeDir); err == nil {
		if err := copyTree(plan.NewTreeDir, filepath.Join(plan.BackupDir, "new")); err != nil {
			return fmt.Errorf("backup existing new-layout tree: %w", err)
		}
	}

	manifest := BackupManifest{CreatedAt: time.Now().UTC(), Moves: plan.Moves, NewTree: plan.NewTreeDir}
	data, err := jsonutil.MarshalIndentWithNewline(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(plan.BackupDir, manifestFileName), data, 0o600); err != nil {
		return fmt.Errorf("write backup manifest: %w", err)
	}
	return nil
}

// FailedSession records one session that could not be migrated, without
// aborting the rest of the batch.
type FailedSession struct {
	ID    string
	Error string
}

// Report is the outcome of Migrate. Success is true iff every planned
// session migrated cleanly.
type Report struct {
	Success          bool
	MigratedSessions []string
	FailedSessions   []FailedSession
	BackupPath       string
	TotalProcessed   int
}

// Migrate executes plan. When dryRun is true, no filesystem writes occur
// and the report reflects what would have happened (every session that
// doesn't already have a destination conflict is reported as migrated).
// A single session's failure (destination already exists, copy error,
// post-copy verification failure) is recorded in FailedSessions and does
// not prevent the remaining sessions from being attempted.
func Migrate(ctx context.Context, plan Plan, dryRun bool) Report {
	report := Report{BackupPath: plan.BackupDir, TotalProcessed: len(plan.Moves)}

	for _, m := range plan.Moves {
		if err := migrateOne(m, dryRun); err != nil {
			report.FailedSessions = append(report.FailedSessions, FailedSession{ID: m.Session.ID, Error: err.Error()})
			obslog.Warn(ctx, "session migration failed", "session", m.Session.ID, "error", err.Error())
			continue
		}
		report.MigratedSessions = append(report.MigratedSessions, m.Session.ID)
	}

	report.Success = len(report.FailedSessions) == 0
	return report
}

func migrateOne(m PlannedMove, dryRun bool) error {
	if _, err := os.Stat(m.Destination); err == nil {
		return fmt.Errorf("destination %s already exists", m.Destination)
	}
	if dryRun {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(m.Destination), 0o750); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	if err := copyTree(m.Session.Path, m.Destination); err != nil {
		return fmt.Errorf("copy tree: %w", err)
	}
	return verifyDestination(m.Destination)
}

// verifyDestination confirms the migrated tree exists, contains .git, and
// is non-empty.
func verifyDestination(dest string) error {
	if _, err := os.Stat(filepath.Join(dest, ".git")); err != nil {
		return fmt.Errorf("destination missing .git after copy: %w", err)
	}
	entries, err := os.ReadDir(dest)
	if err != nil {
		return fmt.Errorf("cannot read destination after copy: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("destination is empty after copy")
	}
	return nil
}

// Rollback restores the legacy tree from backupDir's manifest, removing
// the new-layout tree it produced and repopulating the legacy tree it
// moved out from under.
func Rollback(ctx context.Context, backupDir string) error {
	data, err := os.ReadFile(filepath.Join(backupDir, manifestFileName))
	if err != nil {
		return fmt.Errorf("read backup manifest: %w", err)
	}
	var manifest BackupManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("parse backup manifest: %w", err)
	}

	if manifest.NewTree != "" {
		if err := os.RemoveAll(manifest.NewTree); err != nil {
			return fmt.Errorf("remove new-layout tree %s: %w", manifest.NewTree, err)
		}
		if backedUpNew := filepath.Join(backupDir, "new"); dirExists(backedUpNew) {
			if err := copyTree(backedUpNew, manifest.NewTree); err != nil {
				return fmt.Errorf("restore previous new-layout tree: %w", err)
			}
		}
	}

	for _, m := range manifest.Moves {
		legacySrc := filepath.Join(backupDir, "legacy", m.Session.RepoName, "sessions", m.Session.ID)
		if err := os.RemoveAll(m.Destination); err != nil {
			obslog.Warn(ctx, "rollback: could not remove migrated destination", "path", m.Destination, "error", err.Error())
		}
		if err := os.MkdirAll(filepath.Dir(m.Session.Path), 0o750); err != nil {
			return fmt.Errorf("recreate legacy parent for %s: %w", m.Session.ID, err)
		}
		if err := copyTree(legacySrc, m.Session.Path); err != nil {
			return fmt.Errorf("restore legacy session %s: %w", m.Session.ID, err)
		}
	}
	return nil
}

// Cleanup removes the legacy git/ tree under baseDir. Callers must only
// call this after Migrate reports Success.
func Cleanup(baseDir string) error {
	gitRoot := filepath.Join(baseDir, "git")
	if err := os.RemoveAll(gitRoot); err != nil {
		return fmt.Errorf("remove legacy tree %s: %w", gitRoot, err)
	}
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// copyTree recursively copies src to dst, preserving the directory
// structure. It does not preserve symlinks as links — it follows them,
// matching the plain-copy helper used for transcript files.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
