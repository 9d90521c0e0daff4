// Package jsonfile implements storage.Backend as a single JSON file,
// guarded by a per-path cross-process lock and written atomically via
// write-to-temp-then-rename, generalized from a one-file-per-session
// layout to a single shared state file.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/sessionforge/sessionctl/internal/coreerr"
	"github.com/sessionforge/sessionctl/internal/jsonutil"
	"github.com/sessionforge/sessionctl/internal/obslog"
	"github.com/sessionforge/sessionctl/internal/sessionrecord"
	"github.com/sessionforge/sessionctl/internal/storage"
)

var _ storage.Backend = (*Backend)(nil)

// Backend is a storage.Backend backed by a single JSON file.
type Backend struct {
	path string
	lock *flock.Flock
}

// New creates a Backend that persists to path. The parent directory is
// created lazily by Initialize/WriteState.
func New(path string) *Backend {
	return &Backend{path: path, lock: flock.New(path + ".lock")}
}

// Location implements storage.Backend.
func (b *Backend) Location() string { return b.path }

// Initialize implements storage.Backend. Creates the parent directory and,
// if the file doesn't exist yet, an empty current-form state file.
func (b *Backend) Initialize(ctx context.Context) (bool, error) {
	if _, err := os.Stat(b.path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, &coreerr.TransientIOError{Op: "stat", Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(b.path), 0o750); err != nil {
		return false, &coreerr.TransientIOError{Op: "mkdir", Err: err}
	}
	if _, err := b.WriteState(ctx, sessionrecord.DBState{Sessions: []sessionrecord.Record{}}); err != nil {
		return false, err
	}
	return true, nil
}

// ReadState implements storage.Backend. A missing file or unparseable
// content is treated as empty state (WARN-logged for the latter).
func (b *Backend) ReadState(ctx context.Context) (sessionrecord.DBState, error) {
	data, err := os.ReadFile(b.path) //nolint:gosec // path is operator-controlled config, not user input
	if os.IsNotExist(err) {
		return sessionrecord.DBState{Sessions: []sessionrecord.Record{}}, nil
	}
	if err != nil {
		return sessionrecord.DBState{}, &coreerr.TransientIOError{Op: "read", Err: err}
	}

	state, ok := parseState(data)
	if !ok {
		obslog.Warn(ctx, "session store file is not valid JSON; treating as empty", "path", b.path)
		return sessionrecord.DBState{Sessions: []sessionrecord.Record{}}, nil
	}
	return state, nil
}

// parseState accepts either the legacy bare-array form or the current
// object form.
func parseState(data []byte) (sessionrecord.DBState, bool) {
	var state sessionrecord.DBState
	if err := json.Unmarshal(data, &state); err == nil {
		return state, true
	}

	var legacy []sessionrecord.Record
	if err := json.Unmarshal(data, &legacy); err == nil {
		return sessionrecord.DBState{Sessions: legacy}, true
	}

	return sessionrecord.DBState{}, false
}

// WriteState implements storage.Backend. Always emits the current object
// form with stable field ordering, via write-to-temp-then-rename for
// atomicity. A flock-based lock additionally serializes concurrent
// read-modify-write cycles across processes, which a bare sync.Mutex
// cannot do since it only coordinates goroutines within one process.
func (b *Backend) WriteState(ctx context.Context, state sessionrecord.DBState) (storage.WriteResult, error) {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o750); err != nil {
		return storage.WriteResult{}, &coreerr.TransientIOError{Op: "mkdir", Err: err}
	}

	locked, err := b.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return storage.WriteResult{}, &coreerr.BackendUnavailableError{Backend: "jsonfile", Err: fmt.Errorf("could not acquire write lock on %s", b.path)}
	}
	defer func() { _ = b.lock.Unlock() }()

	if state.Sessions == nil {
		state.Sessions = []sessionrecord.Record{}
	}

	buf, err := jsonutil.MarshalIndentWithNewline(state, "", "  ")
	if err != nil {
		return storage.WriteResult{}, fmt.Errorf("marshal session state: %w", err)
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o600); err != nil {
		return storage.WriteResult{}, &coreerr.TransientIOError{Op: "write", Err: err}
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return storage.WriteResult{}, &coreerr.TransientIOError{Op: "rename", Err: err}
	}

	return storage.WriteResult{BytesWritten: int64(len(buf))}, nil
}

func (b *Backend) Get(ctx context.Context, session string) (*sessionrecord.Record, error) {
	state, err := b.ReadState(ctx)
	if err != nil {
		return nil, err
	}
	for i := range state.Sessions {
		if state.Sessions[i].Session == session {
			rec := state.Sessions[i].Clone()
			return &rec, nil
		}
	}
	return nil, nil
}

func (b *Backend) GetAll(ctx context.Context, filter sessionrecord.Filter) ([]sessionrecord.Record, error) {
	state, err := b.ReadState(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]sessionrecord.Record, 0, len(state.Sessions))
	for _, r := range state.Sessions {
		if filter.Match(r) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (b *Backend) Create(ctx context.Context, rec sessionrecord.Record) error {
	state, err := b.ReadState(ctx)
	if err != nil {
		return err
	}
	for _, r := range state.Sessions {
		if r.Session == rec.Session {
			return &coreerr.ConflictError{Resource: "session", ID: rec.Session}
		}
	}
	state.Sessions = append(state.Sessions, rec)
	_, err = b.WriteState(ctx, state)
	return err
}

func (b *Backend) Update(ctx context.Context, session string, patch sessionrecord.Patch) (*sessionrecord.Record, error) {
	state, err := b.ReadState(ctx)
	if err != nil {
		return nil, err
	}
	for i := range state.Sessions {
		if state.Sessions[i].Session == session {
			state.Sessions[i] = patch.Apply(state.Sessions[i])
			if _, err := b.WriteState(ctx, state); err != nil {
				return nil, err
			}
			rec := state.Sessions[i].Clone()
			return &rec, nil
		}
	}
	return nil, nil
}

func (b *Backend) Delete(ctx context.Context, session string) (bool, error) {
	state, err := b.ReadState(ctx)
	if err != nil {
		return false, err
	}
	for i := range state.Sessions {
		if state.Sessions[i].Session == session {
			state.Sessions = append(state.Sessions[:i], state.Sessions[i+1:]...)
			if _, err := b.WriteState(ctx, state); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

func (b *Backend) Exists(ctx context.Context, session string) (bool, error) {
	rec, err := b.Get(ctx, session)
	return rec != nil, err
}
