// Package sessionstore is the content-addressed session registry: the
// facade the rest of the core calls instead of touching a storage.Backend
// directly. It composes a storage.Backend with internal/sessionpath for
// workspace-path resolution, delegating persistence to a pluggable backend
// rather than reading and writing one file per session directly.
package sessionstore

import (
	"context"
	"fmt"

	"github.com/sessionforge/sessionctl/internal/coreerr"
	"github.com/sessionforge/sessionctl/internal/obslog"
	"github.com/sessionforge/sessionctl/internal/sessionpath"
	"github.com/sessionforge/sessionctl/internal/sessionrecord"
	"github.com/sessionforge/sessionctl/internal/sessionvalidate"
	"github.com/sessionforge/sessionctl/internal/storage"
)

// Store is the Session Registry contract.
type Store interface {
	List(ctx context.Context) ([]sessionrecord.Record, error)
	Get(ctx context.Context, session string) (*sessionrecord.Record, error)
	GetByTaskID(ctx context.Context, taskID string) (*sessionrecord.Record, error)
	Add(ctx context.Context, rec sessionrecord.Record) error
	Update(ctx context.Context, session string, patch sessionrecord.Patch) (*sessionrecord.Record, error)
	Delete(ctx context.Context, session string) (bool, error)
	GetRepoPath(rec *sessionrecord.Record) string
	GetSessionWorkdir(ctx context.Context, session string) (string, error)
}

type store struct {
	backend storage.Backend
	baseDir string
}

// New composes a Store over backend, resolving workspace paths under
// baseDir via internal/sessionpath.
func New(backend storage.Backend, baseDir string) Store {
	return &store{backend: backend, baseDir: baseDir}
}

// List returns a snapshot of every registered session; iteration order is
// unspecified.
func (s *store) List(ctx context.Context) ([]sessionrecord.Record, error) {
	recs, err := s.backend.GetAll(ctx, sessionrecord.Filter{})
	if err != nil {
		obslog.Error(ctx, "list sessions failed", "error", err.Error())
		return nil, err
	}
	return recs, nil
}

// Get returns the record for session, or (nil, nil) if absent.
func (s *store) Get(ctx context.Context, session string) (*sessionrecord.Record, error) {
	rec, err := s.backend.Get(ctx, session)
	if err != nil {
		obslog.Error(ctx, "get session failed", "session", session, "error", err.Error())
		return nil, err
	}
	return rec, nil
}

// GetByTaskID returns the record whose TaskID normalizes to the same value
// as taskID, in any accepted form.
func (s *store) GetByTaskID(ctx context.Context, taskID string) (*sessionrecord.Record, error) {
	recs, err := s.backend.GetAll(ctx, sessionrecord.Filter{TaskID: &taskID})
	if err != nil {
		obslog.Error(ctx, "get session by task id failed", "taskId", taskID, "error", err.Error())
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// Add inserts a new record. Fails on duplicate session, or if rec.Session
// isn't safe to embed in the workspace path sessionpath.Resolve builds.
func (s *store) Add(ctx context.Context, rec sessionrecord.Record) error {
	if err := sessionvalidate.Session(rec.Session); err != nil {
		return err
	}
	if err := s.backend.Create(ctx, rec); err != nil {
		obslog.Error(ctx, "add session failed", "session", rec.Session, "error", err.Error())
		return err
	}
	return nil
}

// Update merges patch into the existing record. session is never patched;
// it's a no-op if the session doesn't exist.
func (s *store) Update(ctx context.Context, session string, patch sessionrecord.Patch) (*sessionrecord.Record, error) {
	rec, err := s.backend.Update(ctx, session, patch)
	if err != nil {
		obslog.Error(ctx, "update session failed", "session", session, "error", err.Error())
		return nil, err
	}
	return rec, nil
}

// Delete removes the record for session. Returns true iff a record was
// removed.
func (s *store) Delete(ctx context.Context, session string) (bool, error) {
	ok, err := s.backend.Delete(ctx, session)
	if err != nil {
		obslog.Error(ctx, "delete session failed", "session", session, "error", err.Error())
		return false, err
	}
	return ok, nil
}

// GetRepoPath returns the canonical workspace path for rec. Stable across
// process restarts for any persisted record, since it's a pure function of
// baseDir and the session name — never of anything stored in rec itself.
func (s *store) GetRepoPath(rec *sessionrecord.Record) string {
	if rec == nil {
		return ""
	}
	return sessionpath.Resolve(s.baseDir, rec.Session)
}

// GetSessionWorkdir is GetRepoPath(Get(session)), or "" if the session is
// absent.
func (s *store) GetSessionWorkdir(ctx context.Context, session string) (string, error) {
	rec, err := s.Get(ctx, session)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", nil
	}
	return s.GetRepoPath(rec), nil
}

// EnsureBackend runs Initialize on backend, wrapping any failure so callers
// get a clear signal that the registry itself isn't usable yet.
func EnsureBackend(ctx context.Context, backend storage.Backend) error {
	if _, err := backend.Initialize(ctx); err != nil {
		return fmt.Errorf("%w: initialize storage backend: %w", coreerr.ErrBackendUnavailable, err)
	}
	return nil
}
