package integrity

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_MissingFileNoBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")

	report := Check(context.Background(), FormatJSON, path)
	assert.True(t, report.IsValid)
	assert.Equal(t, FormatEmpty, report.ActualFormat)
	assert.Empty(t, report.BackupsFound)
	require.Len(t, report.SuggestedActions, 1)
	assert.Equal(t, ActionCreate, report.SuggestedActions[0].Kind)
}

func TestCheck_MissingFileWithBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")
	backup := filepath.Join(dir, "sessions.json.bak")
	require.NoError(t, os.WriteFile(backup, []byte(`{"sessions":[]}`), 0o600))

	report := Check(context.Background(), FormatJSON, path)
	assert.False(t, report.IsValid)
	require.Len(t, report.BackupsFound, 1)
	assert.Equal(t, backup, report.BackupsFound[0].Path)
	require.NotEmpty(t, report.SuggestedActions)
	assert.Equal(t, ActionRestore, report.SuggestedActions[0].Kind)
}

func TestCheck_ValidJSONObjectForm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sessions":[{"session":"a"}]}`), 0o600))

	report := Check(context.Background(), FormatJSON, path)
	assert.True(t, report.IsValid)
	assert.Equal(t, FormatJSON, report.ActualFormat)
	assert.Empty(t, report.Issues)
}

func TestCheck_LegacyArrayFormWarns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"session":"a"}]`), 0o600))

	report := Check(context.Background(), FormatJSON, path)
	assert.True(t, report.IsValid)
	assert.NotEmpty(t, report.Warnings)
}

func TestCheck_CorruptJSONIsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	report := Check(context.Background(), FormatJSON, path)
	assert.False(t, report.IsValid)
	assert.NotEmpty(t, report.Issues)
}

func TestCheck_FormatMismatchSuggestsMigrate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sessions":[]}`), 0o600))

	report := Check(context.Background(), FormatEmbeddedSQL, path)
	assert.Equal(t, FormatJSON, report.ActualFormat)
	require.NotEmpty(t, report.SuggestedActions)
	assert.Equal(t, ActionMigrate, report.SuggestedActions[0].Kind)
}

func TestCheck_ValidSQLite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE sessions (session TEXT PRIMARY KEY)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	report := Check(context.Background(), FormatEmbeddedSQL, path)
	assert.True(t, report.IsValid, "issues: %v", report.Issues)
	assert.Equal(t, FormatEmbeddedSQL, report.ActualFormat)
}

func TestCheck_SQLiteMissingSessionsTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE other (x TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	report := Check(context.Background(), FormatEmbeddedSQL, path)
	assert.False(t, report.IsValid)
	assert.Contains(t, report.Issues, "sessions table is missing")
}

func TestScanForBackups_SortedNewestFirst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")
	older := filepath.Join(dir, "sessions.json.bak.2020-01-01T00:00:00Z")
	newer := filepath.Join(dir, "sessions.json.bak.2026-01-01T00:00:00Z")
	require.NoError(t, os.WriteFile(older, []byte(`{}`), 0o600))
	require.NoError(t, os.WriteFile(newer, []byte(`{}`), 0o600))
	now := time.Now()
	require.NoError(t, os.Chtimes(older, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))
	require.NoError(t, os.Chtimes(newer, now, now))

	candidates := scanForBackups(path)
	require.Len(t, candidates, 2)
	assert.Equal(t, newer, candidates[0].Path)
}
