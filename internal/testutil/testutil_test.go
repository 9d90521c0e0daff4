package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sessionforge/sessionctl/internal/sessionrecord"
)

func TestInitRepo_CommitAndBranchHelpers(t *testing.T) {
	dir := t.TempDir()
	InitRepo(t, dir)

	WriteFile(t, dir, "README.md", "hello")
	GitAdd(t, dir, "README.md")
	hash := GitCommit(t, dir, "initial commit")
	require.Equal(t, hash, GetHeadHash(t, dir))

	require.False(t, BranchExists(t, dir, "feature"))
	GitCheckoutNewBranch(t, dir, "feature")
	require.True(t, BranchExists(t, dir, "feature"))
}

func TestNewSessionStore_IsUsable(t *testing.T) {
	store := NewSessionStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, sessionrecord.Record{Session: "s1", RepoName: "acme/widgets"}))
	rec, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "s1", rec.Session)
}
