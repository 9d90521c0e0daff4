package changeset

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/sessionforge/sessionctl/internal/coreerr"
	"github.com/sessionforge/sessionctl/internal/obslog"
	"github.com/sessionforge/sessionctl/internal/repobackend"
	"github.com/sessionforge/sessionctl/internal/repobackend/localgit"
)

const localBaseBranch = "main"

// localAdapter operates entirely on a git working directory: it enumerates
// pr/-prefixed branches as the available changesets, computing commit
// lists and diffs itself rather than calling out to a forge. Creation,
// update, and merge mechanics are delegated to localgit.Backend.
type localAdapter struct {
	workdir string
	backend *localgit.Backend
}

var _ Adapter = (*localAdapter)(nil)

func newLocalAdapter(workdir string) *localAdapter {
	return &localAdapter{workdir: workdir, backend: localgit.New(workdir)}
}

// List enumerates every pr/-prefixed local branch as an open changeset.
func (a *localAdapter) List(ctx context.Context) ([]Changeset, error) {
	out, err := a.output(ctx, "for-each-ref", "--format=%(refname:short)", "refs/heads/pr/")
	if err != nil {
		return nil, err
	}
	var sets []Changeset
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		ref := strings.TrimSpace(scanner.Text())
		if ref == "" {
			continue
		}
		cs, err := a.Get(ctx, ref)
		if err != nil {
			continue
		}
		sets = append(sets, *cs)
	}
	return sets, nil
}

// Get returns the changeset for id (a pr/<branch> ref) without commits or
// diff populated.
func (a *localAdapter) Get(ctx context.Context, id string) (*Changeset, error) {
	status, err := a.backend.GetStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Changeset{
		ID:           id,
		SourceBranch: strings.TrimPrefix(id, "pr/"),
		TargetBranch: localBaseBranch,
		Status:       status,
	}, nil
}

// Search filters List's result by a case-insensitive substring match
// against the source branch name. opts.Limit, if >0, caps the result
// count.
func (a *localAdapter) Search(ctx context.Context, opts SearchOptions) ([]Changeset, error) {
	all, err := a.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(opts.Query)
	var matches []Changeset
	for _, cs := range all {
		if q == "" || strings.Contains(strings.ToLower(cs.SourceBranch), q) {
			matches = append(matches, cs)
			if opts.Limit > 0 && len(matches) >= opts.Limit {
				break
			}
		}
	}
	return matches, nil
}

// Create opens a prepared-merge-commit branch via the local repository
// backend.
func (a *localAdapter) Create(ctx context.Context, opts CreateOptions) (*Changeset, error) {
	target := opts.TargetBranch
	if target == "" {
		target = localBaseBranch
	}
	pr, err := a.backend.CreatePullRequest(ctx, repobackend.PullRequestOptions{
		SourceBranch: opts.SourceBranch,
		TargetBranch: target,
		Title:        opts.Title,
		Body:         opts.Body,
		Session:      opts.Session,
	})
	if err != nil {
		return nil, err
	}
	return &Changeset{
		ID:           pr.ID,
		Title:        pr.Title,
		Body:         pr.Body,
		SourceBranch: opts.SourceBranch,
		TargetBranch: target,
		Status:       repobackend.StatusOpen,
	}, nil
}

// Update is local bookkeeping: a prepared branch has nowhere else to store
// a title or description, so the patched values only affect the returned
// Changeset.
func (a *localAdapter) Update(ctx context.Context, id string, opts UpdateOptions) (*Changeset, error) {
	cs, err := a.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if opts.Title != nil && *opts.Title != cs.Title {
		obslog.Info(ctx, "changeset title changed", "id", id, "diff", renderTextDiff(cs.Title, *opts.Title))
		cs.Title = *opts.Title
	}
	if opts.Body != nil {
		cs.Body = *opts.Body
	}
	return cs, nil
}

// Approve is local bookkeeping: the local repository backend has no
// server-side review concept, so approval only ever reflects back onto the
// caller's own session record.
func (a *localAdapter) Approve(ctx context.Context, id string) (*Changeset, error) {
	pr, err := a.backend.ApprovePullRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Changeset{ID: pr.ID, SourceBranch: strings.TrimPrefix(id, "pr/"), TargetBranch: localBaseBranch, Status: repobackend.StatusOpen}, nil
}

// Merge runs a pre-merge secret scan over the changeset's diff and refuses
// to merge if a likely credential is found, then delegates the actual
// merge to the local repository backend.
func (a *localAdapter) Merge(ctx context.Context, id string) (*Changeset, error) {
	details, err := a.GetDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	if findings := scanForSecrets(details.Diff); len(findings) > 0 {
		return nil, &coreerr.ValidationFailureError{
			Reason: fmt.Sprintf("refusing to merge %s: %d potential secret(s) found in diff (%s)", id, len(findings), strings.Join(findings, ", ")),
		}
	}
	pr, err := a.backend.MergePullRequest(ctx, id, repobackend.MergeOptions{})
	if err != nil {
		return nil, err
	}
	details.ID = pr.ID
	details.Status = repobackend.StatusMerged
	return details, nil
}

// GetDetails returns the changeset with its commit list and a unified diff
// against the target branch populated.
func (a *localAdapter) GetDetails(ctx context.Context, id string) (*Changeset, error) {
	cs, err := a.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	commits, err := a.commits(ctx, cs.SourceBranch)
	if err != nil {
		return nil, err
	}
	cs.Commits = commits

	diff, err := a.backend.GetPullRequestDiff(ctx, id)
	if err != nil {
		return nil, err
	}
	cs.Diff = diff
	return cs, nil
}

// SupportsFeature reports false unconditionally: the local adapter is
// plain git with no review workflow, comment threads, or forge-side
// protections to offer.
func (a *localAdapter) SupportsFeature(Feature) bool { return false }

func (a *localAdapter) commits(ctx context.Context, branch string) ([]Commit, error) {
	out, err := a.output(ctx, "log", localBaseBranch+".."+branch, "--format=%H%x1f%s%x1f%an")
	if err != nil {
		return nil, err
	}
	var commits []Commit
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), "\x1f", 3)
		if len(parts) != 3 {
			continue
		}
		commits = append(commits, Commit{Hash: parts[0], Message: parts[1], Author: parts[2]})
	}
	return commits, nil
}

func (a *localAdapter) output(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = a.workdir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", &coreerr.TransientIOError{Op: "git " + strings.Join(args, " "), Err: fmt.Errorf("%s: %w", strings.TrimSpace(string(out)), err)}
	}
	return strings.TrimSpace(string(out)), nil
}

// renderTextDiff renders a human-scannable diff between two text blobs.
// Used for fields git's own diff never covers, like a changeset's title or
// description, where there is no unified-diff source to fall back on.
func renderTextDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	return dmp.DiffPrettyText(diffs)
}
