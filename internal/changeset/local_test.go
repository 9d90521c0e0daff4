package changeset

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sessionforge/sessionctl/internal/repobackend"
)

func initLocalRepo(t *testing.T) string {
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

func commitOnBranch(t *testing.T, dir, branch, file, content string) {
	t.Helper()
	cmds := [][]string{
		{"checkout", "-b", branch},
	}
	for _, args := range cmds {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		require.NoError(t, cmd.Run())
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o600))
	for _, args := range [][]string{{"add", file}, {"commit", "-m", "add " + file}} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		require.NoError(t, cmd.Run())
	}
	checkout := exec.Command("git", "checkout", "main")
	checkout.Dir = dir
	require.NoError(t, checkout.Run())
}

func TestLocalAdapter_CreateListGetDetailsMerge(t *testing.T) {
	dir := initLocalRepo(t)
	commitOnBranch(t, dir, "feature", "feature.txt", "work")

	a := newLocalAdapter(dir)
	ctx := context.Background()

	cs, err := a.Create(ctx, CreateOptions{SourceBranch: "feature", TargetBranch: "main", Title: "add feature", Session: "s1"})
	require.NoError(t, err)
	require.Equal(t, "pr/s1", cs.ID)

	listed, err := a.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "pr/s1", listed[0].ID)

	details, err := a.GetDetails(ctx, cs.ID)
	require.NoError(t, err)
	require.Len(t, details.Commits, 1)
	require.Contains(t, details.Diff, "feature.txt")

	require.False(t, a.SupportsFeature(FeatureApprovalWorkflow))

	merged, err := a.Merge(ctx, cs.ID)
	require.NoError(t, err)
	require.Equal(t, repobackend.StatusMerged, merged.Status)
}

func TestLocalAdapter_Search(t *testing.T) {
	dir := initLocalRepo(t)
	commitOnBranch(t, dir, "add-widget", "widget.txt", "w")
	commitOnBranch(t, dir, "remove-gadget", "gadget.txt", "g")

	a := newLocalAdapter(dir)
	ctx := context.Background()

	_, err := a.Create(ctx, CreateOptions{SourceBranch: "add-widget", TargetBranch: "main", Session: "s-widget"})
	require.NoError(t, err)
	_, err = a.Create(ctx, CreateOptions{SourceBranch: "remove-gadget", TargetBranch: "main", Session: "s-gadget"})
	require.NoError(t, err)

	matches, err := a.Search(ctx, SearchOptions{Query: "widget"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "pr/s-widget", matches[0].ID)
}

func TestLocalAdapter_Approve(t *testing.T) {
	dir := initLocalRepo(t)
	commitOnBranch(t, dir, "feature", "feature.txt", "work")

	a := newLocalAdapter(dir)
	ctx := context.Background()

	cs, err := a.Create(ctx, CreateOptions{SourceBranch: "feature", TargetBranch: "main", Session: "s1"})
	require.NoError(t, err)

	approved, err := a.Approve(ctx, cs.ID)
	require.NoError(t, err)
	require.Equal(t, cs.ID, approved.ID)
}

func TestLocalAdapter_Update(t *testing.T) {
	dir := initLocalRepo(t)
	commitOnBranch(t, dir, "feature", "feature.txt", "work")

	a := newLocalAdapter(dir)
	ctx := context.Background()

	cs, err := a.Create(ctx, CreateOptions{SourceBranch: "feature", TargetBranch: "main", Title: "v1", Session: "s1"})
	require.NoError(t, err)

	newTitle := "v2"
	updated, err := a.Update(ctx, cs.ID, UpdateOptions{Title: &newTitle})
	require.NoError(t, err)
	require.Equal(t, "v2", updated.Title)
}
