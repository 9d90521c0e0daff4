// Package sqlitestore implements storage.Backend over an embedded SQLite
// database, generalizing jsonfile's write-then-rename atomicity guarantee
// into a single transaction per WriteState and giving GetAll/Get the
// indexed lookups a flat JSON file can't offer at scale.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sessionforge/sessionctl/internal/coreerr"
	"github.com/sessionforge/sessionctl/internal/obslog"
	"github.com/sessionforge/sessionctl/internal/sessionrecord"
	"github.com/sessionforge/sessionctl/internal/storage"
	"github.com/sessionforge/sessionctl/internal/task"
)

var _ storage.Backend = (*Backend)(nil)

// writeBatchSize caps rows per INSERT during WriteState's truncate+reload.
const writeBatchSize = 250

// Backend is a storage.Backend backed by a SQLite database file.
type Backend struct {
	path string
	db   *sql.DB
}

// New opens (lazily, on first use) a SQLite database at path.
func New(path string) (*Backend, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver is not safe for concurrent writers across connections
	return &Backend{path: path, db: db}, nil
}

// Location implements storage.Backend.
func (b *Backend) Location() string { return b.path }

// Close releases the underlying database handle.
func (b *Backend) Close() error { return b.db.Close() }

// Initialize implements storage.Backend: creates the sessions table if
// absent and applies any additive column migrations the current binary
// expects but an older database file doesn't have yet.
func (b *Backend) Initialize(ctx context.Context) (bool, error) {
	var exists int
	err := b.db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type='table' AND name='sessions'`).Scan(&exists)
	if err != nil {
		return false, &coreerr.TransientIOError{Op: "check schema", Err: err}
	}
	created := exists == 0

	if _, err := b.db.ExecContext(ctx, createTableSQL); err != nil {
		return false, &coreerr.TransientIOError{Op: "create schema", Err: err}
	}
	if err := b.runMigrations(ctx); err != nil {
		return false, err
	}
	if _, err := b.db.ExecContext(ctx, `PRAGMA busy_timeout=5000;`); err != nil {
		return false, &coreerr.TransientIOError{Op: "set busy_timeout", Err: err}
	}
	return created, nil
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	session      TEXT PRIMARY KEY,
	repo_name    TEXT NOT NULL DEFAULT '',
	repo_url     TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL DEFAULT '',
	task_id      TEXT NOT NULL DEFAULT '',
	branch       TEXT NOT NULL DEFAULT '',
	pr_branch    TEXT NOT NULL DEFAULT '',
	pr_approved  TEXT,
	pr_state     TEXT,
	backend_type TEXT NOT NULL DEFAULT '',
	pull_request TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_task_id ON sessions(task_id);
CREATE INDEX IF NOT EXISTS idx_sessions_repo_name ON sessions(repo_name);
`

// expectedColumns is the full current set of sessions columns. runMigrations
// adds any that are missing from an older database file, the "ADD COLUMN
// IF NOT EXISTS"-equivalent this module needs since the sqlite3 driver's
// ALTER TABLE ADD COLUMN has no native IF NOT EXISTS guard across the
// SQLite versions it links against.
var expectedColumns = []string{
	"session", "repo_name", "repo_url", "created_at", "task_id",
	"branch", "pr_branch", "pr_approved", "pr_state", "backend_type", "pull_request",
}

func (b *Backend) runMigrations(ctx context.Context) error {
	rows, err := b.db.QueryContext(ctx, `PRAGMA table_info(sessions)`)
	if err != nil {
		return &coreerr.TransientIOError{Op: "inspect schema", Err: err}
	}
	defer rows.Close()

	present := map[string]bool{}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return &coreerr.TransientIOError{Op: "scan schema", Err: err}
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return &coreerr.TransientIOError{Op: "iterate schema", Err: err}
	}

	for _, col := range expectedColumns {
		if present[col] {
			continue
		}
		stmt := fmt.Sprintf(`ALTER TABLE sessions ADD COLUMN %s TEXT NOT NULL DEFAULT ''`, col)
		if col == "pr_approved" || col == "pr_state" || col == "pull_request" {
			stmt = fmt.Sprintf(`ALTER TABLE sessions ADD COLUMN %s TEXT`, col)
		}
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return &coreerr.TransientIOError{Op: "migrate: add column " + col, Err: err}
		}
	}
	return nil
}

// ReadState implements storage.Backend.
func (b *Backend) ReadState(ctx context.Context) (sessionrecord.DBState, error) {
	records, err := b.queryRecords(ctx, `SELECT session, repo_name, repo_url, created_at, task_id, branch, pr_branch, pr_approved, pr_state, backend_type, pull_request FROM sessions ORDER BY session`)
	if err != nil {
		return sessionrecord.DBState{}, err
	}
	return sessionrecord.DBState{Sessions: records}, nil
}

// WriteState implements storage.Backend: truncates and reloads the table
// inside a single transaction, batching inserts so a single statement never
// carries more than writeBatchSize rows' worth of placeholders.
func (b *Backend) WriteState(ctx context.Context, state sessionrecord.DBState) (storage.WriteResult, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.WriteResult{}, &coreerr.TransientIOError{Op: "begin tx", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return storage.WriteResult{}, &coreerr.TransientIOError{Op: "truncate", Err: err}
	}

	var bytesWritten int64
	for start := 0; start < len(state.Sessions); start += writeBatchSize {
		end := start + writeBatchSize
		if end > len(state.Sessions) {
			end = len(state.Sessions)
		}
		n, err := insertBatch(ctx, tx, state.Sessions[start:end])
		if err != nil {
			return storage.WriteResult{}, err
		}
		bytesWritten += n
	}

	if err := tx.Commit(); err != nil {
		return storage.WriteResult{}, &coreerr.TransientIOError{Op: "commit", Err: err}
	}
	return storage.WriteResult{BytesWritten: bytesWritten}, nil
}

func insertBatch(ctx context.Context, tx *sql.Tx, batch []sessionrecord.Record) (int64, error) {
	const cols = 11
	placeholders := make([]string, 0, len(batch))
	args := make([]any, 0, len(batch)*cols)
	var bytesWritten int64

	for _, r := range batch {
		row, err := rowValues(r)
		if err != nil {
			return 0, err
		}
		placeholders = append(placeholders, "(?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args, row...)
		for _, v := range row {
			if s, ok := v.(string); ok {
				bytesWritten += int64(len(s))
			}
		}
	}
	if len(batch) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`INSERT INTO sessions (session, repo_name, repo_url, created_at, task_id, branch, pr_branch, pr_approved, pr_state, backend_type, pull_request) VALUES %s`,
		strings.Join(placeholders, ","))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, &coreerr.TransientIOError{Op: "insert batch", Err: err}
	}
	return bytesWritten, nil
}

func rowValues(r sessionrecord.Record) ([]any, error) {
	prApproved, err := nullableJSON(r.PRApproved)
	if err != nil {
		return nil, fmt.Errorf("encode pr_approved: %w", err)
	}
	prState, err := nullableJSON(r.PRState)
	if err != nil {
		return nil, fmt.Errorf("encode pr_state: %w", err)
	}
	var pullRequest sql.NullString
	if len(r.PullRequest) > 0 {
		pullRequest = sql.NullString{String: string(r.PullRequest), Valid: true}
	}
	return []any{
		r.Session, r.RepoName, r.RepoURL, r.CreatedAt.Format(time.RFC3339Nano),
		string(r.TaskID), r.Branch, r.PRBranch, prApproved, prState, r.BackendType, pullRequest,
	}, nil
}

func nullableJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func (b *Backend) queryRecords(ctx context.Context, query string, args ...any) ([]sessionrecord.Record, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &coreerr.TransientIOError{Op: "query", Err: err}
	}
	defer rows.Close()

	var out []sessionrecord.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			obslog.Warn(ctx, "skipping unreadable session row", "error", err.Error())
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &coreerr.TransientIOError{Op: "iterate rows", Err: err}
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (sessionrecord.Record, error) {
	var (
		session, repoName, repoURL, createdAt string
		taskID, branch, prBranch, backendType string
		prApproved, prState, pullRequest      sql.NullString
	)
	if err := rows.Scan(&session, &repoName, &repoURL, &createdAt, &taskID, &branch, &prBranch, &prApproved, &prState, &backendType, &pullRequest); err != nil {
		return sessionrecord.Record{}, err
	}

	rec := sessionrecord.Record{
		Session:     session,
		RepoName:    repoName,
		RepoURL:     repoURL,
		TaskID:      task.ID(taskID),
		Branch:      branch,
		PRBranch:    prBranch,
		BackendType: backendType,
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}
	if prApproved.Valid {
		var v any
		if err := json.Unmarshal([]byte(prApproved.String), &v); err == nil {
			rec.PRApproved = v
		}
	}
	if prState.Valid {
		var st sessionrecord.PRState
		if err := json.Unmarshal([]byte(prState.String), &st); err == nil {
			rec.PRState = &st
		}
	}
	if pullRequest.Valid {
		rec.PullRequest = json.RawMessage(pullRequest.String)
	}
	return rec, nil
}

func (b *Backend) Get(ctx context.Context, session string) (*sessionrecord.Record, error) {
	records, err := b.queryRecords(ctx, `SELECT session, repo_name, repo_url, created_at, task_id, branch, pr_branch, pr_approved, pr_state, backend_type, pull_request FROM sessions WHERE session = ?`, session)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (b *Backend) GetAll(ctx context.Context, filter sessionrecord.Filter) ([]sessionrecord.Record, error) {
	records, err := b.queryRecords(ctx, `SELECT session, repo_name, repo_url, created_at, task_id, branch, pr_branch, pr_approved, pr_state, backend_type, pull_request FROM sessions ORDER BY session`)
	if err != nil {
		return nil, err
	}
	out := make([]sessionrecord.Record, 0, len(records))
	for _, r := range records {
		if filter.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (b *Backend) Create(ctx context.Context, rec sessionrecord.Record) error {
	row, err := rowValues(rec)
	if err != nil {
		return err
	}
	_, err = b.db.ExecContext(ctx, `INSERT INTO sessions (session, repo_name, repo_url, created_at, task_id, branch, pr_branch, pr_approved, pr_state, backend_type, pull_request) VALUES (?,?,?,?,?,?,?,?,?,?,?)`, row...)
	if err != nil {
		if isUniqueViolation(err) {
			return &coreerr.ConflictError{Resource: "session", ID: rec.Session}
		}
		return &coreerr.TransientIOError{Op: "insert", Err: err}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (b *Backend) Update(ctx context.Context, session string, patch sessionrecord.Patch) (*sessionrecord.Record, error) {
	existing, err := b.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	updated := patch.Apply(*existing)
	row, err := rowValues(updated)
	if err != nil {
		return nil, err
	}
	_, err = b.db.ExecContext(ctx, `UPDATE sessions SET repo_name=?, repo_url=?, created_at=?, task_id=?, branch=?, pr_branch=?, pr_approved=?, pr_state=?, backend_type=?, pull_request=? WHERE session=?`,
		row[1], row[2], row[3], row[4], row[5], row[6], row[7], row[8], row[9], row[10], session)
	if err != nil {
		return nil, &coreerr.TransientIOError{Op: "update", Err: err}
	}
	return &updated, nil
}

func (b *Backend) Delete(ctx context.Context, session string) (bool, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM sessions WHERE session = ?`, session)
	if err != nil {
		return false, &coreerr.TransientIOError{Op: "delete", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &coreerr.TransientIOError{Op: "rows affected", Err: err}
	}
	return n > 0, nil
}

func (b *Backend) Exists(ctx context.Context, session string) (bool, error) {
	rec, err := b.Get(ctx, session)
	return rec != nil, err
}
