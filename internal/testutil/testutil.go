// Package testutil provides test fixtures shared across this module's test
// packages: temp git repositories and a temp jsonfile-backed session store.
// It has no build tags, matching teacher's own testutil package so any
// _test.go file can import it without restriction.
package testutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/sessionforge/sessionctl/internal/sessionstore"
	"github.com/sessionforge/sessionctl/internal/storage/jsonfile"
)

const (
	testAuthorName  = "sessionctl test"
	testAuthorEmail = "test@sessionctl.dev"
)

// InitRepo creates a git repository under repoDir with test author config
// and GPG signing disabled, so commits in tests never block on a signing key.
func InitRepo(t *testing.T, repoDir string) {
	t.Helper()

	repo, err := git.PlainInit(repoDir, false)
	require.NoError(t, err)

	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.User.Name = testAuthorName
	cfg.User.Email = testAuthorEmail
	if cfg.Raw == nil {
		cfg.Raw = config.New()
	}
	cfg.Raw.Section("commit").SetOption("gpgsign", "false")
	require.NoError(t, repo.SetConfig(cfg))
}

// WriteFile writes content at path under repoDir, creating parent
// directories as needed.
func WriteFile(t *testing.T, repoDir, path, content string) {
	t.Helper()
	full := filepath.Join(repoDir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

// GitAdd stages paths for commit.
func GitAdd(t *testing.T, repoDir string, paths ...string) {
	t.Helper()
	repo, err := git.PlainOpen(repoDir)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for _, p := range paths {
		_, err := wt.Add(p)
		require.NoError(t, err)
	}
}

// GitCommit commits all currently staged changes with message.
func GitCommit(t *testing.T, repoDir, message string) string {
	t.Helper()
	repo, err := git.PlainOpen(repoDir)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: testAuthorName, Email: testAuthorEmail, When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

// GitCheckoutNewBranch creates and checks out branchName. It shells out to
// the git binary rather than using go-git's worktree checkout, which has a
// known history of mishandling untracked files during branch switches.
func GitCheckoutNewBranch(t *testing.T, repoDir, branchName string) {
	t.Helper()
	cmd := exec.Command("git", "checkout", "-b", branchName)
	cmd.Dir = repoDir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git checkout -b %s: %s", branchName, out)
}

// GetHeadHash returns the current HEAD commit hash.
func GetHeadHash(t *testing.T, repoDir string) string {
	t.Helper()
	repo, err := git.PlainOpen(repoDir)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	return head.Hash().String()
}

// BranchExists reports whether branchName exists in the repository.
func BranchExists(t *testing.T, repoDir, branchName string) bool {
	t.Helper()
	repo, err := git.PlainOpen(repoDir)
	require.NoError(t, err)
	refs, err := repo.References()
	require.NoError(t, err)

	found := false
	_ = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Name().Short() == branchName {
			found = true
		}
		return nil
	})
	return found
}

// NewSessionStore builds a jsonfile-backed sessionstore.Store rooted at a
// fresh temp directory, initialized and ready to use.
func NewSessionStore(t *testing.T) sessionstore.Store {
	t.Helper()
	baseDir := t.TempDir()
	backend := jsonfile.New(filepath.Join(baseDir, "sessions.json"))
	_, err := backend.Initialize(context.Background())
	require.NoError(t, err)
	return sessionstore.New(backend, baseDir)
}
