// Package approval is the Approval/Merge Engine: the guarded state machine
// that moves a session's changeset through NoPR -> PRCreated -> PRApproved
// -> PRMerged (with PRClosed as a terminal side state reachable from any of
// the first three). It centralizes the single most important invariant of
// this core — merge never proceeds without a verified approval — the way
// validation/validators.go centralizes its own ordered guard-then-reason
// checks, and couples session state to task status the way checkpoint.go's
// Store methods are themselves called from a single orchestration point
// rather than scattered across callers.
package approval

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/sessionforge/sessionctl/internal/changeset"
	"github.com/sessionforge/sessionctl/internal/coreerr"
	"github.com/sessionforge/sessionctl/internal/obslog"
	"github.com/sessionforge/sessionctl/internal/sessionrecord"
	"github.com/sessionforge/sessionctl/internal/sessionstore"
	"github.com/sessionforge/sessionctl/internal/sessionvalidate"
	"github.com/sessionforge/sessionctl/internal/task"
)

// Guard names one of Merge's three ordered checks, for GuardError.
type Guard string

const (
	GuardNoProposal          Guard = "NoProposal"
	GuardNotApproved         Guard = "NotApproved"
	GuardInvalidApprovalState Guard = "InvalidApprovalState"
)

// GuardError reports which of Merge's ordered guards rejected the call.
// It wraps coreerr.ErrValidationFailure so callers can still branch with
// errors.Is without caring which specific guard fired.
type GuardError struct {
	Guard  Guard
	Reason string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("merge blocked (%s): %s", e.Guard, e.Reason)
}

func (e *GuardError) Unwrap() error { return coreerr.ErrValidationFailure }

// CreateOptions configures Create.
type CreateOptions struct {
	SourceBranch string
	TargetBranch string
	Title        string
	Body         string
	// SkipTaskTransition suppresses the TODO->IN-REVIEW task transition
	// Create otherwise attempts when the session has a linked task.
	SkipTaskTransition bool
}

// Engine is the Approval/Merge Engine. It owns no changeset.Adapter itself
// — callers pass one in per call, since the adapter to use depends on the
// session's repository URL, which only the caller resolves.
type Engine struct {
	sessions sessionstore.Store
	tasks    task.Store
}

// New constructs an Engine. A nil tasks disables task-status coupling
// entirely (equivalent to passing task.NoopStore{}).
func New(sessions sessionstore.Store, tasks task.Store) *Engine {
	if tasks == nil {
		tasks = task.NoopStore{}
	}
	return &Engine{sessions: sessions, tasks: tasks}
}

// Create opens a changeset for session's proposed branch, guarded by: no
// changeset may already exist (prBranch absent or prState.exists false).
// On success it also attempts a TODO->IN-REVIEW task transition unless
// opts.SkipTaskTransition is set; a task-store failure here is logged as a
// warning and never fails the call — the changeset itself was already
// created successfully.
func (e *Engine) Create(ctx context.Context, session string, adapter changeset.Adapter, opts CreateOptions) (*sessionrecord.Record, error) {
	rec, err := e.sessions.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &coreerr.ResourceNotFoundError{ResourceType: "session", ResourceID: session}
	}
	if rec.PRBranch != "" && rec.PRState != nil && rec.PRState.Exists {
		return nil, &coreerr.ConflictError{Resource: "changeset", ID: rec.PRBranch}
	}
	if err := sessionvalidate.ChangesetRef(opts.SourceBranch); err != nil {
		return nil, fmt.Errorf("source branch: %w", err)
	}
	if opts.TargetBranch != "" {
		if err := sessionvalidate.ChangesetRef(opts.TargetBranch); err != nil {
			return nil, fmt.Errorf("target branch: %w", err)
		}
	}

	cs, err := adapter.Create(ctx, changeset.CreateOptions{
		SourceBranch: opts.SourceBranch,
		TargetBranch: opts.TargetBranch,
		Title:        opts.Title,
		Body:         opts.Body,
		Session:      session,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	branch := cs.ID
	updated, err := e.sessions.Update(ctx, session, sessionrecord.Patch{
		PRBranch: &branch,
		PRState: &sessionrecord.PRState{
			BranchName:  branch,
			Exists:      true,
			LastChecked: now,
			CreatedAt:   now,
		},
	})
	if err != nil {
		return nil, err
	}

	if !opts.SkipTaskTransition && rec.TaskID != "" {
		if err := e.tasks.SetTaskStatus(ctx, rec.TaskID, task.StatusInReview); err != nil {
			obslog.Warn(ctx, "task status transition to IN-REVIEW failed", "session", session, "taskId", rec.TaskID.String(), "error", err.Error())
		}
	}
	return updated, nil
}

// Approve is guarded by prBranch being present. It records approval
// through adapter (a forge adapter submits a real review; the local
// adapter records it as local bookkeeping only), then stores
// prApproved=true as a strict Go bool so Merge's third guard can identity
// check it.
func (e *Engine) Approve(ctx context.Context, session string, adapter changeset.Adapter) (*sessionrecord.Record, error) {
	rec, err := e.sessions.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &coreerr.ResourceNotFoundError{ResourceType: "session", ResourceID: session}
	}
	if rec.PRBranch == "" {
		return nil, &GuardError{Guard: GuardNoProposal, Reason: "no changeset exists for this session"}
	}

	if _, err := adapter.Approve(ctx, rec.PRBranch); err != nil {
		return nil, err
	}

	approved := true
	return e.sessions.Update(ctx, session, sessionrecord.Patch{PRApproved: &approved})
}

// Merge performs the three ordered guard checks that are this core's
// single most important invariant, then delegates the actual merge to
// adapter. Guard order matters: a session with no proposal is NoProposal
// even if prApproved happens to be a stray truthy value. Among present
// non-bool values, a falsy one (0, "", a zero-value struct decoded from a
// hand-edited store) still reads as NotApproved rather than
// InvalidApprovalState — only a truthy non-bool value is genuinely
// ambiguous about the caller's intent. On success, attempts a ->DONE task
// transition; a task-store failure here is logged as a warning and never
// rolls back the merge that already happened.
func (e *Engine) Merge(ctx context.Context, session string, adapter changeset.Adapter) (*sessionrecord.Record, error) {
	rec, err := e.sessions.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &coreerr.ResourceNotFoundError{ResourceType: "session", ResourceID: session}
	}

	if rec.PRBranch == "" {
		return nil, &GuardError{Guard: GuardNoProposal, Reason: "no changeset exists for this session"}
	}
	if rec.PRApproved == nil {
		return nil, &GuardError{Guard: GuardNotApproved, Reason: "prApproved is unset"}
	}
	approved, ok := rec.PRApproved.(bool)
	if !ok {
		if reflect.ValueOf(rec.PRApproved).IsZero() {
			return nil, &GuardError{Guard: GuardNotApproved, Reason: fmt.Sprintf("prApproved has falsy non-boolean value %v (type %T)", rec.PRApproved, rec.PRApproved)}
		}
		return nil, &GuardError{Guard: GuardInvalidApprovalState, Reason: fmt.Sprintf("prApproved has non-boolean value %v (type %T)", rec.PRApproved, rec.PRApproved)}
	}
	if !approved {
		return nil, &GuardError{Guard: GuardNotApproved, Reason: "prApproved is false"}
	}

	if _, err := adapter.Merge(ctx, rec.PRBranch); err != nil {
		return nil, err
	}

	now := time.Now()
	mergedState := sessionrecord.PRState{BranchName: rec.PRBranch, Exists: true, CreatedAt: now, LastChecked: now}
	if rec.PRState != nil {
		mergedState = *rec.PRState
	}
	mergedState.MergedAt = &now
	updated, err := e.sessions.Update(ctx, session, sessionrecord.Patch{PRState: &mergedState})
	if err != nil {
		return nil, err
	}

	if rec.TaskID != "" {
		if err := e.tasks.SetTaskStatus(ctx, rec.TaskID, task.StatusDone); err != nil {
			obslog.Warn(ctx, "task status transition to DONE failed", "session", session, "taskId", rec.TaskID.String(), "error", err.Error())
		}
	}
	return updated, nil
}
