// Package sessionrecord defines the data model shared by internal/storage
// (which persists it) and internal/sessionstore (which owns it). It is kept
// dependency-light and free of behavior, matching the "no dependencies, to
// avoid import cycles" discipline of the validation/checkpoint-id packages
// it's modeled on.
package sessionrecord

import (
	"encoding/json"
	"time"

	"github.com/sessionforge/sessionctl/internal/task"
)

// PRState tracks the last-known state of a session's prepared
// change-proposal branch.
type PRState struct {
	BranchName  string     `json:"branchName"`
	Exists      bool       `json:"exists"`
	LastChecked time.Time  `json:"lastChecked"`
	CreatedAt   time.Time  `json:"createdAt"`
	MergedAt    *time.Time `json:"mergedAt,omitempty"`
	CommitHash  string     `json:"commitHash,omitempty"`
}

// Record is a SessionRecord: the durable, content-addressed mapping from a
// session name to its task, workspace, and changeset state. Session is the
// primary key and is immutable after creation.
type Record struct {
	Session    string          `json:"session"`
	RepoName   string          `json:"repoName"`
	RepoURL    string          `json:"repoUrl"`
	CreatedAt  time.Time       `json:"createdAt"`
	TaskID     task.ID         `json:"taskId,omitempty"`
	Branch     string          `json:"branch,omitempty"`
	PRBranch   string          `json:"prBranch,omitempty"`
	// PRApproved is typed `any` rather than `bool` so that a corrupted or
	// hand-edited store — SQL backends have historically persisted
	// non-boolean truthy values here — round-trips faithfully instead of
	// failing at deserialization. The approval engine's third guard
	// inspects this value's concrete Go type and rejects anything that
	// isn't strictly `bool(true)`.
	PRApproved  any              `json:"prApproved,omitempty"`
	PRState     *PRState         `json:"prState,omitempty"`
	BackendType string           `json:"backendType,omitempty"`
	// PullRequest is the platform-specific opaque record, kept as raw JSON
	// so storage backends never need to know the shape of any particular
	// platform's payload.
	PullRequest json.RawMessage `json:"pullRequest,omitempty"`
}

// Clone returns a deep-enough copy of r suitable for handing to a caller
// as a value copy — consumers always receive their own copy, never a
// reference into the backend's internal state.
func (r Record) Clone() Record {
	out := r
	if r.PRState != nil {
		st := *r.PRState
		out.PRState = &st
	}
	if r.PullRequest != nil {
		out.PullRequest = append(json.RawMessage(nil), r.PullRequest...)
	}
	return out
}

// DBState is the on-disk representation: either a bare array (legacy) or
// this object (current). Readers accept both; writers always produce this
// form.
type DBState struct {
	Sessions []Record `json:"sessions"`
	BaseDir  string   `json:"baseDir"`
}

// Filter narrows GetAll/list results. A nil field is unconstrained. TaskID
// is compared after normalization (leading "#" stripped); records with no
// TaskID are excluded from positive TaskID matches.
type Filter struct {
	TaskID   *string
	RepoName *string
	Branch   *string
}

// Match reports whether r satisfies f.
func (f Filter) Match(r Record) bool {
	if f.TaskID != nil {
		if r.TaskID == "" {
			return false
		}
		if !task.Equal(string(r.TaskID), *f.TaskID) {
			return false
		}
	}
	if f.RepoName != nil && r.RepoName != *f.RepoName {
		return false
	}
	if f.Branch != nil && r.Branch != *f.Branch {
		return false
	}
	return true
}

// Patch is a partial update to a Record. A nil field means "leave
// unchanged". Session can never be patched — the store's Update rejects
// any attempt to do so by construction, since Patch has no Session field
// at all.
type Patch struct {
	RepoName    *string
	RepoURL     *string
	TaskID      *task.ID
	Branch      *string
	PRBranch    *string
	PRApproved  *bool
	PRState     *PRState
	BackendType *string
	PullRequest json.RawMessage
}

// Apply merges non-nil patch fields into r, returning the updated record.
func (p Patch) Apply(r Record) Record {
	if p.RepoName != nil {
		r.RepoName = *p.RepoName
	}
	if p.RepoURL != nil {
		r.RepoURL = *p.RepoURL
	}
	if p.TaskID != nil {
		r.TaskID = *p.TaskID
	}
	if p.Branch != nil {
		r.Branch = *p.Branch
	}
	if p.PRBranch != nil {
		r.PRBranch = *p.PRBranch
	}
	if p.PRApproved != nil {
		r.PRApproved = *p.PRApproved
	}
	if p.PRState != nil {
		st := *p.PRState
		r.PRState = &st
	}
	if p.BackendType != nil {
		r.BackendType = *p.BackendType
	}
	if p.PullRequest != nil {
		r.PullRequest = p.PullRequest
	}
	return r
}
