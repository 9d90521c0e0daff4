package githubpr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sessionforge/sessionctl/internal/coreerr"
	"github.com/sessionforge/sessionctl/internal/repobackend"
)

func TestParseNumber_ValidAndInvalid(t *testing.T) {
	n, err := parseNumber("42")
	require.NoError(t, err)
	require.Equal(t, 42, n)

	_, err = parseNumber("pr/feature")
	require.Error(t, err)
	var invalid *coreerr.InvalidInputError
	require.True(t, errors.As(err, &invalid))
}

func TestGetType(t *testing.T) {
	b := New(repobackend.Config{Token: "test-token", RepoOwner: "acme", RepoName: "widgets"})
	require.Equal(t, repobackend.TypeGitHub, b.GetType())
}

func TestRegisteredAsGitHubBackend(t *testing.T) {
	backend, err := repobackend.Get(repobackend.TypeGitHub, repobackend.Config{Token: "t", RepoOwner: "acme", RepoName: "widgets"})
	require.NoError(t, err)
	require.Equal(t, repobackend.TypeGitHub, backend.GetType())
}
