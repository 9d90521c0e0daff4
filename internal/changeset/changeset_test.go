package changeset

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sessionforge/sessionctl/internal/repobackend"

	_ "github.com/sessionforge/sessionctl/internal/repobackend/githubpr"
	_ "github.com/sessionforge/sessionctl/internal/repobackend/gitlabmr"
)

func TestSelect_DispatchesByHost(t *testing.T) {
	cfg := repobackend.Config{Token: "t", RepoOwner: "acme", RepoName: "widgets"}

	gh, err := Select("https://github.com/acme/widgets", t.TempDir(), cfg)
	require.NoError(t, err)
	_, isForge := gh.(*forgeAdapter)
	require.True(t, isForge)

	gl, err := Select("https://gitlab.example.com/acme/widgets", t.TempDir(), cfg)
	require.NoError(t, err)
	_, isForge = gl.(*forgeAdapter)
	require.True(t, isForge)

	local, err := Select("/srv/repos/widgets", t.TempDir(), cfg)
	require.NoError(t, err)
	_, isLocal := local.(*localAdapter)
	require.True(t, isLocal)
}

func TestGitLabAdapter_SupportsFeatureReportsPlatformCapability(t *testing.T) {
	cfg := repobackend.Config{Token: "t", RepoOwner: "acme", RepoName: "widgets"}
	a, err := Select("https://gitlab.com/acme/widgets", t.TempDir(), cfg)
	require.NoError(t, err)

	require.True(t, a.SupportsFeature(FeatureApprovalWorkflow))
}
