// Package storage defines the generic two-level persistence contract that
// internal/sessionstore composes over: state-level ReadState/WriteState,
// and entity-level CRUD. Three concrete backends implement it: jsonfile
// (single JSON file), sqlitestore (embedded SQL), and pgstore (networked
// SQL).
package storage

import (
	"context"

	"github.com/sessionforge/sessionctl/internal/sessionrecord"
)

// WriteResult reports the outcome of WriteState.
type WriteResult struct {
	BytesWritten int64
}

// Backend is the generic storage contract, instantiated here over
// sessionrecord.Record/DBState — the only entity/state pair this module
// needs, so the contract is a concrete interface rather than a generic one.
type Backend interface {
	// ReadState returns the full persisted state.
	ReadState(ctx context.Context) (sessionrecord.DBState, error)
	// WriteState replaces the full persisted state.
	WriteState(ctx context.Context, state sessionrecord.DBState) (WriteResult, error)

	// Get returns the record for session, or (nil, nil) if absent.
	Get(ctx context.Context, session string) (*sessionrecord.Record, error)
	// GetAll returns records matching filter (nil filter = all).
	GetAll(ctx context.Context, filter sessionrecord.Filter) ([]sessionrecord.Record, error)
	// Create inserts a new record. Returns a Conflict-kind error if session
	// already exists.
	Create(ctx context.Context, rec sessionrecord.Record) error
	// Update merges patch into the existing record and persists it. Returns
	// (nil, nil) if the session doesn't exist (update is a no-op, it never
	// creates a record).
	Update(ctx context.Context, session string, patch sessionrecord.Patch) (*sessionrecord.Record, error)
	// Delete removes the record for session. Returns true iff a record was
	// removed.
	Delete(ctx context.Context, session string) (bool, error)
	// Exists reports whether session has a record.
	Exists(ctx context.Context, session string) (bool, error)

	// Location returns a human-readable description of where this backend
	// persists data (file path, DSN with credentials redacted, etc).
	Location() string
	// Initialize prepares the backend for first use (creates files/tables).
	// Returns true if initialization actually created something.
	Initialize(ctx context.Context) (bool, error)
}
