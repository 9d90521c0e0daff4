package localgit

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sessionforge/sessionctl/internal/committrailer"
	"github.com/sessionforge/sessionctl/internal/repobackend"
)

// initRepo creates a throwaway repository with a "main" branch carrying
// one commit, matching the branch name CreatePullRequest/GetStatus assume.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	run("init", "-b", "main")
	run("config", "user.email", "test@test.com")
	run("config", "user.name", "test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello"), 0o600))
	run("add", "README.md")
	run("commit", "-m", "initial commit")
	return dir
}

func TestCreatePullRequest_PreparesMergeCommit(t *testing.T) {
	dir := initRepo(t)
	b := New(dir)
	ctx := context.Background()

	cmd := exec.Command("git", "checkout", "-b", "feature")
	cmd.Dir = dir
	require.NoError(t, cmd.Run())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature.txt"), []byte("work"), 0o600))
	for _, args := range [][]string{{"add", "feature.txt"}, {"commit", "-m", "feature work"}} {
		c := exec.Command("git", args...)
		c.Dir = dir
		require.NoError(t, c.Run())
	}

	checkoutMain := exec.Command("git", "checkout", "main")
	checkoutMain.Dir = dir
	require.NoError(t, checkoutMain.Run())

	pr, err := b.CreatePullRequest(ctx, repobackend.PullRequestOptions{
		SourceBranch: "feature", TargetBranch: "main", Title: "merge feature", Session: "s1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, pr.CommitHash)
	require.Equal(t, "pr/s1", pr.ID)

	status, err := b.GetStatus(ctx, pr.ID)
	require.NoError(t, err)
	require.Equal(t, "open", string(status))
}

func TestCreatePullRequest_StampsSessionTrailerWhenSessionSet(t *testing.T) {
	dir := initRepo(t)
	b := New(dir)
	ctx := context.Background()

	cmd := exec.Command("git", "checkout", "-b", "feature")
	cmd.Dir = dir
	require.NoError(t, cmd.Run())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature.txt"), []byte("work"), 0o600))
	for _, args := range [][]string{{"add", "feature.txt"}, {"commit", "-m", "feature work"}} {
		c := exec.Command("git", args...)
		c.Dir = dir
		require.NoError(t, c.Run())
	}
	checkoutMain := exec.Command("git", "checkout", "main")
	checkoutMain.Dir = dir
	require.NoError(t, checkoutMain.Run())

	_, err := b.CreatePullRequest(ctx, repobackend.PullRequestOptions{
		SourceBranch: "feature", TargetBranch: "main", Title: "merge feature", Session: "s1",
	})
	require.NoError(t, err)

	show := exec.Command("git", "show", "-s", "--format=%B", "pr/s1")
	show.Dir = dir
	out, err := show.CombinedOutput()
	require.NoError(t, err)

	session, ok := committrailer.ParseSession(string(out))
	require.True(t, ok)
	require.Equal(t, "s1", session)
}

func TestCreatePullRequest_RejectsEmptySession(t *testing.T) {
	dir := initRepo(t)
	b := New(dir)
	ctx := context.Background()

	cmd := exec.Command("git", "checkout", "-b", "feature")
	cmd.Dir = dir
	require.NoError(t, cmd.Run())

	_, err := b.CreatePullRequest(ctx, repobackend.PullRequestOptions{
		SourceBranch: "feature", TargetBranch: "main", Title: "merge feature",
	})
	require.Error(t, err)
}

func checkoutBranch(t *testing.T, dir, name string, create bool) {
	t.Helper()
	args := []string{"checkout"}
	if create {
		args = append(args, "-b")
	}
	args = append(args, name)
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	require.NoError(t, cmd.Run())
}

func commitFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	for _, args := range [][]string{{"add", name}, {"commit", "-m", "commit " + name}} {
		c := exec.Command("git", args...)
		c.Dir = dir
		require.NoError(t, c.Run())
	}
}

func TestMergePullRequest_FastForwards(t *testing.T) {
	dir := initRepo(t)
	b := New(dir)
	ctx := context.Background()

	checkoutBranch(t, dir, "feature", true)
	commitFile(t, dir, "feature.txt", "work")
	checkoutBranch(t, dir, "main", false)

	pr, err := b.CreatePullRequest(ctx, repobackend.PullRequestOptions{
		SourceBranch: "feature", TargetBranch: "main", Title: "merge feature", Session: "s1",
	})
	require.NoError(t, err)

	checkoutBranch(t, dir, "main", false)
	merged, err := b.MergePullRequest(ctx, pr.ID, repobackend.MergeOptions{})
	require.NoError(t, err)
	require.True(t, merged.Merged)
	require.NotEmpty(t, merged.CommitHash)

	status, err := b.GetStatus(ctx, pr.ID)
	require.NoError(t, err)
	require.Equal(t, "merged", string(status))
}

func TestApprovePullRequest_IsLocalBookkeeping(t *testing.T) {
	dir := initRepo(t)
	b := New(dir)
	ctx := context.Background()

	checkoutBranch(t, dir, "feature", true)
	commitFile(t, dir, "feature.txt", "work")
	checkoutBranch(t, dir, "main", false)

	pr, err := b.CreatePullRequest(ctx, repobackend.PullRequestOptions{
		SourceBranch: "feature", TargetBranch: "main", Title: "merge feature", Session: "s1",
	})
	require.NoError(t, err)

	approved, err := b.ApprovePullRequest(ctx, pr.ID)
	require.NoError(t, err)
	require.True(t, approved.Approved)
	require.Equal(t, pr.CommitHash, approved.CommitHash)
}

func TestGetPullRequestDiff_ShowsSourceCommits(t *testing.T) {
	dir := initRepo(t)
	b := New(dir)
	ctx := context.Background()

	checkoutBranch(t, dir, "feature", true)
	commitFile(t, dir, "feature.txt", "work")
	checkoutBranch(t, dir, "main", false)

	pr, err := b.CreatePullRequest(ctx, repobackend.PullRequestOptions{
		SourceBranch: "feature", TargetBranch: "main", Title: "merge feature", Session: "s1",
	})
	require.NoError(t, err)

	diff, err := b.GetPullRequestDiff(ctx, pr.ID)
	require.NoError(t, err)
	require.Contains(t, diff, "feature.txt")
}

func TestUpdatePullRequest_AppliesPatch(t *testing.T) {
	dir := initRepo(t)
	b := New(dir)
	ctx := context.Background()

	checkoutBranch(t, dir, "feature", true)
	commitFile(t, dir, "feature.txt", "work")
	checkoutBranch(t, dir, "main", false)

	pr, err := b.CreatePullRequest(ctx, repobackend.PullRequestOptions{
		SourceBranch: "feature", TargetBranch: "main", Title: "merge feature", Session: "s1",
	})
	require.NoError(t, err)

	newTitle := "updated title"
	newBody := "updated body"
	updated, err := b.UpdatePullRequest(ctx, pr.ID, repobackend.PullRequestPatch{
		Title: &newTitle, Body: &newBody,
	})
	require.NoError(t, err)
	require.Equal(t, newTitle, updated.Title)
	require.Equal(t, newBody, updated.Body)
	require.Equal(t, pr.CommitHash, updated.CommitHash)
}

func TestRegisteredAsLocalBackend(t *testing.T) {
	dir := initRepo(t)
	backend, err := repobackend.Get(repobackend.TypeLocal, repobackend.Config{Workdir: dir})
	require.NoError(t, err)
	require.Equal(t, repobackend.TypeLocal, backend.GetType())
}
