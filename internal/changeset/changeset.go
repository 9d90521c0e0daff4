// Package changeset is the changeset-level adapter layer: list, search,
// create, update, merge, and per-platform capability queries over a
// repository's change proposals. It sits above internal/repobackend (which
// only knows raw pull-request mechanics) the way repobackend itself sits
// above a git remote — Select dispatches on the repository URL's host,
// mirroring the registry-lookup shape repobackend.Get uses for its own
// variants, one layer up.
package changeset

import (
	"context"
	"strings"
	"time"

	"github.com/sessionforge/sessionctl/internal/repobackend"
	"github.com/sessionforge/sessionctl/internal/repouri"
)

// Feature names a platform capability a caller may query before acting on
// a changeset.
type Feature string

const (
	FeatureApprovalWorkflow   Feature = "approval_workflow"
	FeatureDraftChangesets    Feature = "draft_changesets"
	FeatureFileComments       Feature = "file_comments"
	FeatureSuggestedChanges   Feature = "suggested_changes"
	FeatureAutoMerge          Feature = "auto_merge"
	FeatureBranchProtection   Feature = "branch_protection"
	FeatureStatusChecks       Feature = "status_checks"
	FeatureAssigneeManagement Feature = "assignee_management"
	FeatureLabelManagement    Feature = "label_management"
	FeatureMilestoneTracking  Feature = "milestone_tracking"
)

// Commit is one commit carried by a changeset's source branch.
type Commit struct {
	Hash    string
	Message string
	Author  string
}

// Changeset is the platform-agnostic view of a change proposal. It is
// richer than repobackend.PullRequest: GetDetails additionally populates
// Commits and Diff for callers that need changeset-level detail rather
// than bare PR mechanics.
type Changeset struct {
	ID           string
	URL          string
	Title        string
	Body         string
	SourceBranch string
	TargetBranch string
	Status       repobackend.Status
	Commits      []Commit
	Diff         string
	CreatedAt    time.Time
}

// CreateOptions describes a changeset to open.
type CreateOptions struct {
	SourceBranch string
	TargetBranch string
	Title        string
	Body         string
	// Session is the session proposing this changeset, threaded down to
	// the local Repository Backend variant for its merge-commit trailer.
	Session string
}

// UpdateOptions patches an existing changeset. Nil fields are left
// unchanged.
type UpdateOptions struct {
	Title *string
	Body  *string
}

// SearchOptions narrows Search. Query syntax is platform-specific: a forge
// query-language string for forge adapters, a plain branch-name substring
// for the local adapter.
type SearchOptions struct {
	Query string
	Limit int
}

// Adapter is the full changeset-management capability set. Every method
// talks to exactly one repository/platform combination, constructed by
// Select.
type Adapter interface {
	// List returns every open changeset.
	List(ctx context.Context) ([]Changeset, error)
	// Get returns the changeset for id without commits/diff populated.
	Get(ctx context.Context, id string) (*Changeset, error)
	// Search returns changesets matching opts.
	Search(ctx context.Context, opts SearchOptions) ([]Changeset, error)
	// Create opens a new changeset.
	Create(ctx context.Context, opts CreateOptions) (*Changeset, error)
	// Update patches an existing changeset.
	Update(ctx context.Context, id string, opts UpdateOptions) (*Changeset, error)
	// Approve records approval. For forge adapters this submits an
	// "approved" review; for the local adapter this is local bookkeeping
	// only, since there is no server-side review concept to call out to.
	Approve(ctx context.Context, id string) (*Changeset, error)
	// Merge merges the changeset, refusing if a pre-merge secret scan of
	// its diff flags a likely credential.
	Merge(ctx context.Context, id string) (*Changeset, error)
	// GetDetails returns the changeset with Commits and Diff populated.
	GetDetails(ctx context.Context, id string) (*Changeset, error)
	// SupportsFeature reports whether the target platform (not necessarily
	// this adapter's own implementation completeness) offers Feature f.
	SupportsFeature(f Feature) bool
}

var forgeFeatureMatrix = map[Feature]bool{
	FeatureApprovalWorkflow:   true,
	FeatureDraftChangesets:    true,
	FeatureFileComments:       true,
	FeatureSuggestedChanges:   true,
	FeatureAutoMerge:          true,
	FeatureBranchProtection:   true,
	FeatureStatusChecks:       true,
	FeatureAssigneeManagement: true,
	FeatureLabelManagement:    true,
	FeatureMilestoneTracking:  true,
}

// Select parses repoURL and returns the Adapter for the platform it
// resolves to: github.com (or a GitHub Enterprise host containing
// "github") to the GitHub forge adapter, a host containing "gitlab" to the
// GitLab adapter, and anything else — including a bare local path — to the
// local git adapter rooted at workdir. cfg supplies the construction
// parameters (token, owner/repo, base URL) forge variants need.
func Select(repoURL, workdir string, cfg repobackend.Config) (Adapter, error) {
	host := strings.ToLower(repouri.Parse(repoURL).Host)

	switch {
	case strings.Contains(host, "github"):
		backend, err := repobackend.Get(repobackend.TypeGitHub, cfg)
		if err != nil {
			return nil, err
		}
		return newForgeAdapter(backend, forgeFeatureMatrix), nil
	case strings.Contains(host, "gitlab"):
		backend, err := repobackend.Get(repobackend.TypeGitLab, cfg)
		if err != nil {
			return nil, err
		}
		return newForgeAdapter(backend, forgeFeatureMatrix), nil
	default:
		return newLocalAdapter(workdir), nil
	}
}
