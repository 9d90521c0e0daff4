package changeset

import (
	"context"
	"sync"

	"github.com/sessionforge/sessionctl/internal/coreerr"
	"github.com/sessionforge/sessionctl/internal/repobackend"
)

// defaultPageSize bounds how many changesets a single List/Search call
// fetches from a forge per page.
const defaultPageSize = 50

// listSearcher is implemented by repository-backend variants that can
// enumerate and keyword-search changesets beyond the bare
// repobackend.Backend contract (currently githubpr.Backend). The local
// adapter doesn't need this — it implements List/Search directly against
// git refs instead of wrapping a Backend.
type listSearcher interface {
	ListOpenPullRequests(ctx context.Context, pageSize int) ([]*repobackend.PullRequest, error)
	SearchPullRequests(ctx context.Context, query string, limit int) ([]*repobackend.PullRequest, error)
}

// forgeAdapter wraps any repobackend.Backend whose platform is a hosted
// forge: Create/Update/Merge delegate straight through, GetDetails fetches
// status and diff in parallel, and List/Search require the backend to
// additionally implement listSearcher (reported via coreerr.ErrNotImplemented
// otherwise, e.g. for the GitLab placeholder).
type forgeAdapter struct {
	backend  repobackend.Backend
	features map[Feature]bool
}

var _ Adapter = (*forgeAdapter)(nil)

func newForgeAdapter(backend repobackend.Backend, features map[Feature]bool) *forgeAdapter {
	return &forgeAdapter{backend: backend, features: features}
}

func (a *forgeAdapter) List(ctx context.Context) ([]Changeset, error) {
	ls, ok := a.backend.(listSearcher)
	if !ok {
		return nil, coreerr.ErrNotImplemented
	}
	prs, err := ls.ListOpenPullRequests(ctx, defaultPageSize)
	if err != nil {
		return nil, err
	}
	return toChangesets(prs), nil
}

func (a *forgeAdapter) Search(ctx context.Context, opts SearchOptions) ([]Changeset, error) {
	ls, ok := a.backend.(listSearcher)
	if !ok {
		return nil, coreerr.ErrNotImplemented
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	prs, err := ls.SearchPullRequests(ctx, opts.Query, limit)
	if err != nil {
		return nil, err
	}
	return toChangesets(prs), nil
}

func (a *forgeAdapter) Get(ctx context.Context, id string) (*Changeset, error) {
	status, err := a.backend.GetStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Changeset{ID: id, Status: status}, nil
}

func (a *forgeAdapter) Create(ctx context.Context, opts CreateOptions) (*Changeset, error) {
	pr, err := a.backend.CreatePullRequest(ctx, repobackend.PullRequestOptions{
		SourceBranch: opts.SourceBranch,
		TargetBranch: opts.TargetBranch,
		Title:        opts.Title,
		Body:         opts.Body,
	})
	if err != nil {
		return nil, err
	}
	return toChangeset(pr), nil
}

func (a *forgeAdapter) Update(ctx context.Context, id string, opts UpdateOptions) (*Changeset, error) {
	pr, err := a.backend.UpdatePullRequest(ctx, id, repobackend.PullRequestPatch{Title: opts.Title, Body: opts.Body})
	if err != nil {
		return nil, err
	}
	return toChangeset(pr), nil
}

// Approve submits an approval review through the backend.
func (a *forgeAdapter) Approve(ctx context.Context, id string) (*Changeset, error) {
	pr, err := a.backend.ApprovePullRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	return toChangeset(pr), nil
}

// Merge fetches the diff for a pre-merge secret scan before delegating to
// the backend's merge mechanics. A diff-fetch failure is not itself fatal
// to the merge — some forges restrict diff access more tightly than merge
// access — but a detected secret always blocks it.
func (a *forgeAdapter) Merge(ctx context.Context, id string) (*Changeset, error) {
	if diff, err := a.backend.GetPullRequestDiff(ctx, id); err == nil {
		if findings := scanForSecrets(diff); len(findings) > 0 {
			return nil, &coreerr.ValidationFailureError{Reason: "refusing to merge " + id + ": potential secret(s) found in diff"}
		}
	}
	pr, err := a.backend.MergePullRequest(ctx, id, repobackend.MergeOptions{})
	if err != nil {
		return nil, err
	}
	return toChangeset(pr), nil
}

// GetDetails fetches status and diff concurrently: forge round trips
// dominate latency here, and the two calls share no state.
func (a *forgeAdapter) GetDetails(ctx context.Context, id string) (*Changeset, error) {
	var (
		wg                 sync.WaitGroup
		status             repobackend.Status
		diff               string
		statusErr, diffErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		status, statusErr = a.backend.GetStatus(ctx, id)
	}()
	go func() {
		defer wg.Done()
		diff, diffErr = a.backend.GetPullRequestDiff(ctx, id)
	}()
	wg.Wait()

	if statusErr != nil {
		return nil, statusErr
	}
	if diffErr != nil {
		return nil, diffErr
	}
	return &Changeset{ID: id, Status: status, Diff: diff}, nil
}

func (a *forgeAdapter) SupportsFeature(f Feature) bool {
	return a.features[f]
}

func toChangeset(pr *repobackend.PullRequest) *Changeset {
	status := repobackend.StatusOpen
	if pr.Merged {
		status = repobackend.StatusMerged
	}
	return &Changeset{
		ID:           pr.ID,
		URL:          pr.URL,
		Title:        pr.Title,
		Body:         pr.Body,
		SourceBranch: pr.SourceBranch,
		Status:       status,
	}
}

func toChangesets(prs []*repobackend.PullRequest) []Changeset {
	out := make([]Changeset, 0, len(prs))
	for _, pr := range prs {
		out = append(out, *toChangeset(pr))
	}
	return out
}
