// Package githubpr is the GitHub Repository Backend variant: pull-request
// create/update/merge/approve and diff retrieval through the GitHub REST
// API, following the same token-from-Config, single-http-client-owning
// adapter shape the local variant uses for its working-directory handle.
package githubpr

import (
	"context"
	"fmt"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"

	"github.com/sessionforge/sessionctl/internal/coreerr"
	"github.com/sessionforge/sessionctl/internal/repobackend"
)

func init() {
	repobackend.Register(repobackend.TypeGitHub, func(cfg repobackend.Config) repobackend.Backend {
		return New(cfg)
	})
}

// Backend is the GitHub Repository Backend. It owns one *github.Client and
// the owner/repo it operates against.
type Backend struct {
	client *github.Client
	owner  string
	repo   string
}

var _ repobackend.Backend = (*Backend)(nil)

// New constructs a Backend from cfg. cfg.Token authenticates the client
// via a static oauth2 token source; cfg.BaseURL, if set, points the
// client at a GitHub Enterprise instance instead of github.com.
func New(cfg repobackend.Config) *Backend {
	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: cfg.Token},
	))
	client := github.NewClient(httpClient)
	if cfg.BaseURL != "" {
		if withEnterprise, err := client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL); err == nil {
			client = withEnterprise
		}
	}
	return &Backend{client: client, owner: cfg.RepoOwner, repo: cfg.RepoName}
}

func (b *Backend) GetType() repobackend.Type { return repobackend.TypeGitHub }

// CreatePullRequest opens a PR via the GitHub API.
func (b *Backend) CreatePullRequest(ctx context.Context, opts repobackend.PullRequestOptions) (*repobackend.PullRequest, error) {
	pr, _, err := b.client.PullRequests.Create(ctx, b.owner, b.repo, &github.NewPullRequest{
		Title: github.Ptr(opts.Title),
		Head:  github.Ptr(opts.SourceBranch),
		Base:  github.Ptr(opts.TargetBranch),
		Body:  github.Ptr(opts.Body),
	})
	if err != nil {
		return nil, &coreerr.BackendUnavailableError{Backend: "github", Err: fmt.Errorf("create pull request: %w", err)}
	}
	return toPullRequest(pr), nil
}

// UpdatePullRequest applies patch to pull request number id.
func (b *Backend) UpdatePullRequest(ctx context.Context, id string, patch repobackend.PullRequestPatch) (*repobackend.PullRequest, error) {
	number, err := parseNumber(id)
	if err != nil {
		return nil, err
	}
	req := &github.PullRequest{}
	if patch.Title != nil {
		req.Title = patch.Title
	}
	if patch.Body != nil {
		req.Body = patch.Body
	}
	pr, _, err := b.client.PullRequests.Edit(ctx, b.owner, b.repo, number, req)
	if err != nil {
		return nil, &coreerr.BackendUnavailableError{Backend: "github", Err: fmt.Errorf("update pull request %s: %w", id, err)}
	}
	return toPullRequest(pr), nil
}

// MergePullRequest merges pull request number id.
func (b *Backend) MergePullRequest(ctx context.Context, id string, opts repobackend.MergeOptions) (*repobackend.PullRequest, error) {
	number, err := parseNumber(id)
	if err != nil {
		return nil, err
	}
	result, _, err := b.client.PullRequests.Merge(ctx, b.owner, b.repo, number, opts.CommitMessage, nil)
	if err != nil {
		return nil, &coreerr.BackendUnavailableError{Backend: "github", Err: fmt.Errorf("merge pull request %s: %w", id, err)}
	}
	pr := &repobackend.PullRequest{ID: id, Merged: result.GetMerged()}
	if sha := result.GetSHA(); sha != "" {
		pr.CommitHash = sha
	}
	return pr, nil
}

// ApprovePullRequest submits an "APPROVE" review on pull request number id.
func (b *Backend) ApprovePullRequest(ctx context.Context, id string) (*repobackend.PullRequest, error) {
	number, err := parseNumber(id)
	if err != nil {
		return nil, err
	}
	_, _, err = b.client.PullRequests.CreateReview(ctx, b.owner, b.repo, number, &github.PullRequestReviewRequest{
		Event: github.Ptr("APPROVE"),
	})
	if err != nil {
		return nil, &coreerr.BackendUnavailableError{Backend: "github", Err: fmt.Errorf("approve pull request %s: %w", id, err)}
	}
	pr, _, err := b.client.PullRequests.Get(ctx, b.owner, b.repo, number)
	if err != nil {
		return nil, &coreerr.BackendUnavailableError{Backend: "github", Err: fmt.Errorf("fetch pull request %s: %w", id, err)}
	}
	out := toPullRequest(pr)
	out.Approved = true
	return out, nil
}

// GetPullRequestDiff returns the unified diff for pull request number id.
func (b *Backend) GetPullRequestDiff(ctx context.Context, id string) (string, error) {
	number, err := parseNumber(id)
	if err != nil {
		return "", err
	}
	diff, _, err := b.client.PullRequests.GetRaw(ctx, b.owner, b.repo, number, github.RawOptions{Type: github.Diff})
	if err != nil {
		return "", &coreerr.BackendUnavailableError{Backend: "github", Err: fmt.Errorf("get diff for pull request %s: %w", id, err)}
	}
	return diff, nil
}

// GetStatus reports open/merged/closed for pull request number id.
func (b *Backend) GetStatus(ctx context.Context, id string) (repobackend.Status, error) {
	number, err := parseNumber(id)
	if err != nil {
		return "", err
	}
	pr, _, err := b.client.PullRequests.Get(ctx, b.owner, b.repo, number)
	if err != nil {
		return "", &coreerr.BackendUnavailableError{Backend: "github", Err: fmt.Errorf("get pull request %s: %w", id, err)}
	}
	if pr.GetMerged() {
		return repobackend.StatusMerged, nil
	}
	switch pr.GetState() {
	case "closed":
		return repobackend.StatusClosed, nil
	default:
		return repobackend.StatusOpen, nil
	}
}

// ListOpenPullRequests lists every open pull request, paginating at
// pageSize per page until the forge reports no further pages.
func (b *Backend) ListOpenPullRequests(ctx context.Context, pageSize int) ([]*repobackend.PullRequest, error) {
	var all []*repobackend.PullRequest
	opts := &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	for {
		prs, resp, err := b.client.PullRequests.List(ctx, b.owner, b.repo, opts)
		if err != nil {
			return nil, &coreerr.BackendUnavailableError{Backend: "github", Err: fmt.Errorf("list pull requests: %w", err)}
		}
		for _, pr := range prs {
			all = append(all, toPullRequest(pr))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// SearchPullRequests runs query (GitHub's issue-search query language)
// scoped to this repository's pull requests, returning up to limit results.
func (b *Backend) SearchPullRequests(ctx context.Context, query string, limit int) ([]*repobackend.PullRequest, error) {
	full := fmt.Sprintf("repo:%s/%s is:pr %s", b.owner, b.repo, query)
	result, _, err := b.client.Search.Issues(ctx, full, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, &coreerr.BackendUnavailableError{Backend: "github", Err: fmt.Errorf("search pull requests: %w", err)}
	}
	out := make([]*repobackend.PullRequest, 0, len(result.Issues))
	for _, issue := range result.Issues {
		out = append(out, &repobackend.PullRequest{
			ID:    fmt.Sprintf("%d", issue.GetNumber()),
			URL:   issue.GetHTMLURL(),
			Title: issue.GetTitle(),
			Body:  issue.GetBody(),
		})
	}
	return out, nil
}

func toPullRequest(pr *github.PullRequest) *repobackend.PullRequest {
	out := &repobackend.PullRequest{
		ID:           fmt.Sprintf("%d", pr.GetNumber()),
		URL:          pr.GetHTMLURL(),
		SourceBranch: pr.GetHead().GetRef(),
		Title:        pr.GetTitle(),
		Body:         pr.GetBody(),
		Merged:       pr.GetMerged(),
	}
	if head := pr.GetHead(); head != nil {
		out.CommitHash = head.GetSHA()
	}
	if pr.MergedAt != nil {
		out.MergedAt = pr.GetMergedAt().String()
	}
	return out
}

func parseNumber(id string) (int, error) {
	var number int
	if _, err := fmt.Sscanf(id, "%d", &number); err != nil {
		return 0, &coreerr.InvalidInputError{Field: "id", Reason: fmt.Sprintf("not a pull request number: %q", id)}
	}
	return number, nil
}
