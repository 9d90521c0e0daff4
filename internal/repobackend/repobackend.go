// Package repobackend is the capability-typed adapter layer over a git
// remote: local git invocations, a hosted forge's REST API, or a
// placeholder for forges without a realized adapter. Variants register
// themselves through a Factory/Register/Get registry, the same shape
// strategy/registry.go uses for its Strategy implementations.
package repobackend

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Type names a repository backend kind.
type Type string

const (
	TypeLocal       Type = "local"
	TypeGitHub      Type = "github"
	TypeGitLab      Type = "gitlab"
	TypePlaceholder Type = "placeholder"
)

// PullRequestOptions describes a change-proposal to create.
type PullRequestOptions struct {
	SourceBranch string
	TargetBranch string
	Title        string
	Body         string
	// Session, when non-empty, is the session that produced this change.
	// The local variant stamps it onto the prepared merge commit as a
	// trailer; forge variants ignore it (a forge PR already ties back to
	// its branch).
	Session string
}

// PullRequestPatch updates an existing change-proposal; nil fields are
// left unchanged.
type PullRequestPatch struct {
	Title *string
	Body  *string
}

// PullRequest is the backend-agnostic view of a change-proposal.
type PullRequest struct {
	ID           string
	URL          string
	SourceBranch string
	Title        string
	Body         string
	Approved     bool
	Merged       bool
	MergedAt     string
	CommitHash   string
}

// MergeOptions controls how MergePullRequest performs the merge.
type MergeOptions struct {
	CommitMessage string
}

// Status is the coarse state of a change-proposal.
type Status string

const (
	StatusOpen   Status = "open"
	StatusMerged Status = "merged"
	StatusClosed Status = "closed"
)

// Backend is the capability set every repository-backend variant
// implements. Each variant owns no mutable state beyond its HTTP client
// or process invocations.
type Backend interface {
	// GetType reports which variant this is.
	GetType() Type
	// CreatePullRequest opens a new change-proposal from opts.
	CreatePullRequest(ctx context.Context, opts PullRequestOptions) (*PullRequest, error)
	// UpdatePullRequest applies patch to an existing change-proposal.
	UpdatePullRequest(ctx context.Context, id string, patch PullRequestPatch) (*PullRequest, error)
	// MergePullRequest performs the merge.
	MergePullRequest(ctx context.Context, id string, opts MergeOptions) (*PullRequest, error)
	// ApprovePullRequest records approval. For forge adapters this submits
	// an "approved" review; for the local adapter this is a purely local
	// bookkeeping operation.
	ApprovePullRequest(ctx context.Context, id string) (*PullRequest, error)
	// GetPullRequestDiff returns the unified diff of the change-proposal.
	GetPullRequestDiff(ctx context.Context, id string) (string, error)
	// GetStatus reports the current coarse status.
	GetStatus(ctx context.Context, id string) (Status, error)
}

// Config carries the construction parameters a variant may need. Fields
// irrelevant to a given variant are left zero.
type Config struct {
	Workdir   string // local
	Token     string // github, gitlab
	BaseURL   string // gitlab (self-hosted), github enterprise
	RepoOwner string // github, gitlab
	RepoName  string // github, gitlab
}

// Factory constructs a Backend instance from cfg.
type Factory func(cfg Config) Backend

var (
	mu       sync.RWMutex
	registry = make(map[Type]Factory)
)

// Register adds a backend factory to the registry. Typically called from
// an init() function in the variant's package.
func Register(t Type, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[t] = factory
}

// Get constructs a backend of the given type using cfg.
func Get(t Type, cfg Config) (Backend, error) {
	mu.RLock()
	defer mu.RUnlock()
	factory, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("unknown repository backend: %s (available: %v)", t, list())
	}
	return factory(cfg), nil
}

// List returns all registered backend types in sorted order.
func List() []Type {
	mu.RLock()
	defer mu.RUnlock()
	return list()
}

func list() []Type {
	names := make([]Type, 0, len(registry))
	for t := range registry {
		names = append(names, t)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
