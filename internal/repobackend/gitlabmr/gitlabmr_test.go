package gitlabmr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sessionforge/sessionctl/internal/coreerr"
	"github.com/sessionforge/sessionctl/internal/repobackend"
)

func TestPlaceholder_AllMutatingCallsNotImplemented(t *testing.T) {
	b := New(repobackend.Config{RepoOwner: "acme", RepoName: "widgets"})
	ctx := context.Background()

	require.Equal(t, repobackend.TypeGitLab, b.GetType())

	_, err := b.CreatePullRequest(ctx, repobackend.PullRequestOptions{})
	require.True(t, errors.Is(err, coreerr.ErrNotImplemented))

	_, err = b.UpdatePullRequest(ctx, "1", repobackend.PullRequestPatch{})
	require.True(t, errors.Is(err, coreerr.ErrNotImplemented))

	_, err = b.MergePullRequest(ctx, "1", repobackend.MergeOptions{})
	require.True(t, errors.Is(err, coreerr.ErrNotImplemented))

	_, err = b.ApprovePullRequest(ctx, "1")
	require.True(t, errors.Is(err, coreerr.ErrNotImplemented))

	_, err = b.GetPullRequestDiff(ctx, "1")
	require.True(t, errors.Is(err, coreerr.ErrNotImplemented))

	_, err = b.GetStatus(ctx, "1")
	require.True(t, errors.Is(err, coreerr.ErrNotImplemented))
}

func TestRegisteredAsGitLabBackend(t *testing.T) {
	backend, err := repobackend.Get(repobackend.TypeGitLab, repobackend.Config{RepoOwner: "acme", RepoName: "widgets"})
	require.NoError(t, err)
	require.Equal(t, repobackend.TypeGitLab, backend.GetType())
}
