// Package gitlabmr is the GitLab Repository Backend placeholder: it
// advertises repobackend.TypeGitLab and wires a real *gitlab.Client so the
// construction path is exercised, but every mutating capability returns
// coreerr.ErrNotImplemented until a merge-request adapter is realized.
//
// supportsFeature reporting (see internal/changeset) for this backend
// describes what GitLab the platform is capable of, not what this
// placeholder can currently do — callers must not treat a true
// supportsFeature answer as a readiness signal for this adapter.
package gitlabmr

import (
	"context"

	"github.com/xanzy/go-gitlab"

	"github.com/sessionforge/sessionctl/internal/coreerr"
	"github.com/sessionforge/sessionctl/internal/repobackend"
)

func init() {
	repobackend.Register(repobackend.TypeGitLab, func(cfg repobackend.Config) repobackend.Backend {
		return New(cfg)
	})
}

// Backend is the GitLab placeholder variant.
type Backend struct {
	client  *gitlab.Client
	project string
}

var _ repobackend.Backend = (*Backend)(nil)

// New constructs a Backend from cfg. The client is built eagerly so a
// future realization of this adapter only needs to fill in the method
// bodies below, not the construction path.
func New(cfg repobackend.Config) *Backend {
	opts := []gitlab.ClientOptionFunc{}
	if cfg.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(cfg.BaseURL))
	}
	client, _ := gitlab.NewClient(cfg.Token, opts...)
	return &Backend{client: client, project: cfg.RepoOwner + "/" + cfg.RepoName}
}

func (b *Backend) GetType() repobackend.Type { return repobackend.TypeGitLab }

func (b *Backend) CreatePullRequest(ctx context.Context, opts repobackend.PullRequestOptions) (*repobackend.PullRequest, error) {
	return nil, coreerr.ErrNotImplemented
}

func (b *Backend) UpdatePullRequest(ctx context.Context, id string, patch repobackend.PullRequestPatch) (*repobackend.PullRequest, error) {
	return nil, coreerr.ErrNotImplemented
}

func (b *Backend) MergePullRequest(ctx context.Context, id string, opts repobackend.MergeOptions) (*repobackend.PullRequest, error) {
	return nil, coreerr.ErrNotImplemented
}

func (b *Backend) ApprovePullRequest(ctx context.Context, id string) (*repobackend.PullRequest, error) {
	return nil, coreerr.ErrNotImplemented
}

func (b *Backend) GetPullRequestDiff(ctx context.Context, id string) (string, error) {
	return "", coreerr.ErrNotImplemented
}

func (b *Backend) GetStatus(ctx context.Context, id string) (repobackend.Status, error) {
	return "", coreerr.ErrNotImplemented
}
