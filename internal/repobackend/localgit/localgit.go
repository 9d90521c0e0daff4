// Package localgit is the Repository Backend variant that operates
// entirely through git: go-git for branch/ref resolution, falling back
// to shelling out to the git binary where go-git lacks coverage (merge
// commit construction), following the go-git-first/git-command-fallback
// pattern used for ref resolution in git_operations.go.
package localgit

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/sessionforge/sessionctl/internal/committrailer"
	"github.com/sessionforge/sessionctl/internal/coreerr"
	"github.com/sessionforge/sessionctl/internal/repobackend"
)

func init() {
	repobackend.Register(repobackend.TypeLocal, func(cfg repobackend.Config) repobackend.Backend {
		return New(cfg.Workdir)
	})
}

// Backend is the local-git Repository Backend. It owns no mutable state
// beyond the working directory it operates in.
type Backend struct {
	workdir string
}

var _ repobackend.Backend = (*Backend)(nil)

// New returns a Backend rooted at workdir (a session's cloned repository).
func New(workdir string) *Backend {
	return &Backend{workdir: workdir}
}

func (b *Backend) GetType() repobackend.Type { return repobackend.TypeLocal }

// prBranchName is the prepared-merge-commit branch name for session.
func prBranchName(session string) string {
	return "pr/" + session
}

// CreatePullRequest creates a pr/<session> branch containing a prepared
// merge commit of opts.SourceBranch into opts.TargetBranch. The branch is
// keyed off opts.Session, not opts.SourceBranch — two sessions proposing
// changesets from same-named source branches must never collide on one
// pr/ branch. The merge commit is constructed with the git binary —
// go-git has no merge-commit API.
func (b *Backend) CreatePullRequest(ctx context.Context, opts repobackend.PullRequestOptions) (*repobackend.PullRequest, error) {
	if opts.Session == "" {
		return nil, &coreerr.ValidationFailureError{Reason: "local repository backend requires a session to key the pr/ branch on"}
	}
	branch := prBranchName(opts.Session)

	if err := b.run(ctx, "branch", branch, opts.TargetBranch); err != nil {
		return nil, fmt.Errorf("create pr branch: %w", err)
	}
	if err := b.run(ctx, "checkout", branch); err != nil {
		return nil, fmt.Errorf("checkout pr branch: %w", err)
	}
	msg := opts.Title
	if msg == "" {
		msg = fmt.Sprintf("Merge %s into %s", opts.SourceBranch, opts.TargetBranch)
	}
	msg = committrailer.Format(msg, opts.Session, branch)
	if err := b.run(ctx, "merge", "--no-ff", "-m", msg, opts.SourceBranch); err != nil {
		return nil, fmt.Errorf("prepare merge commit: %w", err)
	}

	hash, err := b.revParse(ctx, branch)
	if err != nil {
		return nil, err
	}

	return &repobackend.PullRequest{
		ID:           branch,
		SourceBranch: opts.SourceBranch,
		Title:        opts.Title,
		Body:         opts.Body,
		CommitHash:   hash,
	}, nil
}

// UpdatePullRequest is a local no-op beyond reporting the (unchanged) id,
// since a prepared branch has no separate title/description to store.
func (b *Backend) UpdatePullRequest(ctx context.Context, id string, patch repobackend.PullRequestPatch) (*repobackend.PullRequest, error) {
	hash, err := b.revParse(ctx, id)
	if err != nil {
		return nil, err
	}
	pr := &repobackend.PullRequest{ID: id, CommitHash: hash}
	if patch.Title != nil {
		pr.Title = *patch.Title
	}
	if patch.Body != nil {
		pr.Body = *patch.Body
	}
	return pr, nil
}

// MergePullRequest fast-forwards/merges the prepared branch into the
// target branch the caller currently has checked out.
func (b *Backend) MergePullRequest(ctx context.Context, id string, opts repobackend.MergeOptions) (*repobackend.PullRequest, error) {
	if err := b.run(ctx, "merge", "--ff-only", id); err != nil {
		if mergeErr := b.run(ctx, "merge", id); mergeErr != nil {
			return nil, fmt.Errorf("merge pr branch %s: %w", id, mergeErr)
		}
	}
	hash, err := b.revParse(ctx, "HEAD")
	if err != nil {
		return nil, err
	}
	return &repobackend.PullRequest{ID: id, Merged: true, CommitHash: hash}, nil
}

// ApprovePullRequest is a purely local bookkeeping operation: the local
// adapter has no server-side review concept, so approval is only ever
// reflected in the caller's session record.
func (b *Backend) ApprovePullRequest(ctx context.Context, id string) (*repobackend.PullRequest, error) {
	hash, err := b.revParse(ctx, id)
	if err != nil {
		return nil, err
	}
	return &repobackend.PullRequest{ID: id, Approved: true, CommitHash: hash}, nil
}

// GetPullRequestDiff returns `git log main..<branch>`-scoped diff output.
func (b *Backend) GetPullRequestDiff(ctx context.Context, id string) (string, error) {
	return b.output(ctx, "diff", "main.."+id)
}

// GetStatus compares the merge-base of main and id against id's tip:
// equal means merged, otherwise open.
func (b *Backend) GetStatus(ctx context.Context, id string) (repobackend.Status, error) {
	base, err := b.mergeBase(ctx, "main", id)
	if err != nil {
		return "", err
	}
	tip, err := b.revParse(ctx, id)
	if err != nil {
		return "", err
	}
	if base == tip {
		return repobackend.StatusMerged, nil
	}
	return repobackend.StatusOpen, nil
}

func (b *Backend) mergeBase(ctx context.Context, a, c string) (string, error) {
	return b.output(ctx, "merge-base", a, c)
}

// revParse resolves ref to a commit hash. It tries go-git's revision
// resolver first and only shells out to git when go-git can't resolve the
// revision expression (e.g. relative refs like HEAD~1 in older go-git
// versions, or a bare branch name that isn't a full ref path).
func (b *Backend) revParse(ctx context.Context, ref string) (string, error) {
	repo, err := git.PlainOpen(b.workdir)
	if err == nil {
		if hash, resolveErr := repo.ResolveRevision(plumbing.Revision(ref)); resolveErr == nil {
			return hash.String(), nil
		}
	}
	return b.output(ctx, "rev-parse", ref)
}

func (b *Backend) run(ctx context.Context, args ...string) error {
	_, err := b.output(ctx, args...)
	return err
}

func (b *Backend) output(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = b.workdir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", &coreerr.TransientIOError{Op: "git " + strings.Join(args, " "), Err: fmt.Errorf("%s: %w", strings.TrimSpace(string(out)), err)}
	}
	return strings.TrimSpace(string(out)), nil
}
