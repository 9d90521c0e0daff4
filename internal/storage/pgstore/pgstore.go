// Package pgstore implements storage.Backend over a networked PostgreSQL
// database via pgx/pgxpool, sharing sqlitestore's schema and semantics
// (same columns, same truncate+batch-insert WriteState) but sized for a
// connection pool instead of a single embedded file handle.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sessionforge/sessionctl/internal/coreerr"
	"github.com/sessionforge/sessionctl/internal/obslog"
	"github.com/sessionforge/sessionctl/internal/sessionrecord"
	"github.com/sessionforge/sessionctl/internal/storage"
	"github.com/sessionforge/sessionctl/internal/task"
)

var _ storage.Backend = (*Backend)(nil)

const writeBatchSize = 250

const (
	poolMaxConns        = 10
	poolConnectTimeout  = 30 * time.Second
	poolMaxConnIdleTime = 600 * time.Second
)

// Backend is a storage.Backend backed by a PostgreSQL database.
type Backend struct {
	dsn  string
	pool *pgxpool.Pool
}

// New opens a connection pool against dsn. The DSN is never logged or
// included in Location's output verbatim.
func New(ctx context.Context, dsn string) (*Backend, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = poolMaxConns
	cfg.ConnConfig.ConnectTimeout = poolConnectTimeout
	cfg.MaxConnIdleTime = poolMaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, &coreerr.BackendUnavailableError{Backend: "postgres", Err: err}
	}
	return &Backend{dsn: dsn, pool: pool}, nil
}

// Location implements storage.Backend, redacting any userinfo in the DSN.
func (b *Backend) Location() string { return redactDSN(b.dsn) }

func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***@" + dsn[at+1:]
}

// Close releases the connection pool.
func (b *Backend) Close() { b.pool.Close() }

// Initialize implements storage.Backend.
func (b *Backend) Initialize(ctx context.Context) (bool, error) {
	var exists bool
	err := b.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'sessions')`).Scan(&exists)
	if err != nil {
		return false, &coreerr.TransientIOError{Op: "check schema", Err: err}
	}
	created := !exists

	if _, err := b.pool.Exec(ctx, createTableSQL); err != nil {
		return false, &coreerr.TransientIOError{Op: "create schema", Err: err}
	}
	if err := b.runMigrations(ctx); err != nil {
		return false, err
	}
	return created, nil
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	session      TEXT PRIMARY KEY,
	repo_name    TEXT NOT NULL DEFAULT '',
	repo_url     TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	task_id      TEXT NOT NULL DEFAULT '',
	branch       TEXT NOT NULL DEFAULT '',
	pr_branch    TEXT NOT NULL DEFAULT '',
	pr_approved  JSONB,
	pr_state     JSONB,
	backend_type TEXT NOT NULL DEFAULT '',
	pull_request JSONB
);
CREATE INDEX IF NOT EXISTS idx_sessions_task_id ON sessions(task_id);
CREATE INDEX IF NOT EXISTS idx_sessions_repo_name ON sessions(repo_name);
`

var expectedColumns = map[string]string{
	"session":      "TEXT PRIMARY KEY",
	"repo_name":    "TEXT NOT NULL DEFAULT ''",
	"repo_url":     "TEXT NOT NULL DEFAULT ''",
	"created_at":   "TIMESTAMPTZ NOT NULL DEFAULT now()",
	"task_id":      "TEXT NOT NULL DEFAULT ''",
	"branch":       "TEXT NOT NULL DEFAULT ''",
	"pr_branch":    "TEXT NOT NULL DEFAULT ''",
	"pr_approved":  "JSONB",
	"pr_state":     "JSONB",
	"backend_type": "TEXT NOT NULL DEFAULT ''",
	"pull_request": "JSONB",
}

func (b *Backend) runMigrations(ctx context.Context) error {
	rows, err := b.pool.Query(ctx, `SELECT column_name FROM information_schema.columns WHERE table_name = 'sessions'`)
	if err != nil {
		return &coreerr.TransientIOError{Op: "inspect schema", Err: err}
	}
	present := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return &coreerr.TransientIOError{Op: "scan schema", Err: err}
		}
		present[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return &coreerr.TransientIOError{Op: "iterate schema", Err: err}
	}

	for col, def := range expectedColumns {
		if present[col] || col == "session" {
			continue
		}
		if _, err := b.pool.Exec(ctx, fmt.Sprintf(`ALTER TABLE sessions ADD COLUMN IF NOT EXISTS %s %s`, col, def)); err != nil {
			return &coreerr.TransientIOError{Op: "migrate: add column " + col, Err: err}
		}
	}
	return nil
}

const selectColumns = `session, repo_name, repo_url, created_at, task_id, branch, pr_branch, pr_approved, pr_state, backend_type, pull_request`

func (b *Backend) ReadState(ctx context.Context) (sessionrecord.DBState, error) {
	records, err := b.queryRecords(ctx, `SELECT `+selectColumns+` FROM sessions ORDER BY session`)
	if err != nil {
		return sessionrecord.DBState{}, err
	}
	return sessionrecord.DBState{Sessions: records}, nil
}

func (b *Backend) WriteState(ctx context.Context, state sessionrecord.DBState) (storage.WriteResult, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return storage.WriteResult{}, &coreerr.TransientIOError{Op: "begin tx", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `TRUNCATE TABLE sessions`); err != nil {
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

	if err := tx.Commit(ctx); err != nil {
		return storage.WriteResult{}, &coreerr.TransientIOError{Op: "commit", Err: err}
	}
	return storage.WriteResult{BytesWritten: bytesWritten}, nil
}

func insertBatch(ctx context.Context, tx pgx.Tx, batch []sessionrecord.Record) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	rows := make([][]any, 0, len(batch))
	var bytesWritten int64
	for _, r := range batch {
		row, err := rowValues(r)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
		for _, v := range row {
			if s, ok := v.(string); ok {
				bytesWritten += int64(len(s))
			}
		}
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"sessions"},
		[]string{"session", "repo_name", "repo_url", "created_at", "task_id", "branch", "pr_branch", "pr_approved", "pr_state", "backend_type", "pull_request"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return 0, &coreerr.TransientIOError{Op: "copy batch", Err: err}
	}
	_ = n
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
	var pullRequest any
	if len(r.PullRequest) > 0 {
		pullRequest = string(r.PullRequest)
	}
	return []any{
		r.Session, r.RepoName, r.RepoURL, r.CreatedAt, string(r.TaskID), r.Branch, r.PRBranch,
		prApproved, prState, r.BackendType, pullRequest,
	}, nil
}

func nullableJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (b *Backend) queryRecords(ctx context.Context, query string, args ...any) ([]sessionrecord.Record, error) {
	rows, err := b.pool.Query(ctx, query, args...)
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

func scanRecord(rows pgx.Rows) (sessionrecord.Record, error) {
	var (
		session, repoName, repoURL, taskID, branch, prBranch, backendType string
		createdAt                                                         time.Time
		prApproved, prState, pullRequest                                  *string
	)
	if err := rows.Scan(&session, &repoName, &repoURL, &createdAt, &taskID, &branch, &prBranch, &prApproved, &prState, &backendType, &pullRequest); err != nil {
		return sessionrecord.Record{}, err
	}

	rec := sessionrecord.Record{
		Session:     session,
		RepoName:    repoName,
		RepoURL:     repoURL,
		CreatedAt:   createdAt,
		TaskID:      task.ID(taskID),
		Branch:      branch,
		PRBranch:    prBranch,
		BackendType: backendType,
	}
	if prApproved != nil {
		var v any
		if err := json.Unmarshal([]byte(*prApproved), &v); err == nil {
			rec.PRApproved = v
		}
	}
	if prState != nil {
		var st sessionrecord.PRState
		if err := json.Unmarshal([]byte(*prState), &st); err == nil {
			rec.PRState = &st
		}
	}
	if pullRequest != nil {
		rec.PullRequest = json.RawMessage(*pullRequest)
	}
	return rec, nil
}

func (b *Backend) Get(ctx context.Context, session string) (*sessionrecord.Record, error) {
	records, err := b.queryRecords(ctx, `SELECT `+selectColumns+` FROM sessions WHERE session = $1`, session)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (b *Backend) GetAll(ctx context.Context, filter sessionrecord.Filter) ([]sessionrecord.Record, error) {
	records, err := b.queryRecords(ctx, `SELECT `+selectColumns+` FROM sessions ORDER BY session`)
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
	_, err = b.pool.Exec(ctx, `INSERT INTO sessions (`+selectColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, row...)
	if err != nil {
		if isUniqueViolation(err) {
			return &coreerr.ConflictError{Resource: "session", ID: rec.Session}
		}
		return &coreerr.TransientIOError{Op: "insert", Err: err}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value")
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
	_, err = b.pool.Exec(ctx, `UPDATE sessions SET repo_name=$1, repo_url=$2, created_at=$3, task_id=$4, branch=$5, pr_branch=$6, pr_approved=$7, pr_state=$8, backend_type=$9, pull_request=$10 WHERE session=$11`,
		row[1], row[2], row[3], row[4], row[5], row[6], row[7], row[8], row[9], row[10], session)
	if err != nil {
		return nil, &coreerr.TransientIOError{Op: "update", Err: err}
	}
	return &updated, nil
}

func (b *Backend) Delete(ctx context.Context, session string) (bool, error) {
	tag, err := b.pool.Exec(ctx, `DELETE FROM sessions WHERE session = $1`, session)
	if err != nil {
		return false, &coreerr.TransientIOError{Op: "delete", Err: err}
	}
	return tag.RowsAffected() > 0, nil
}

func (b *Backend) Exists(ctx context.Context, session string) (bool, error) {
	rec, err := b.Get(ctx, session)
	return rec != nil, err
}
