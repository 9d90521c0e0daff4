package sessionstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionforge/sessionctl/internal/sessionrecord"
	"github.com/sessionforge/sessionctl/internal/storage/jsonfile"
)

func newTestStore(t *testing.T) (Store, string) {
	t.Helper()
	baseDir := t.TempDir()
	backend := jsonfile.New(filepath.Join(baseDir, "sessions.json"))
	_, err := backend.Initialize(context.Background())
	require.NoError(t, err)
	return New(backend, baseDir), baseDir
}

func TestAddGetDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Add(ctx, sessionrecord.Record{Session: "abc123", RepoName: "org/repo"}))

	got, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "org/repo", got.RepoName)

	ok, err := s.Delete(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAdd_RejectsPathTraversalSessionID(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	err := s.Add(ctx, sessionrecord.Record{Session: "../../etc/passwd"})
	require.Error(t, err)

	got, err := s.Get(ctx, "../../etc/passwd")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetByTaskID(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	require.NoError(t, s.Add(ctx, sessionrecord.Record{Session: "s1", TaskID: "TASK-1"}))

	got, err := s.GetByTaskID(ctx, "TASK-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "s1", got.Session)

	missing, err := s.GetByTaskID(ctx, "TASK-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdate_AbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	newName := "x"
	got, err := s.Update(ctx, "missing", sessionrecord.Patch{RepoName: &newName})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetRepoPath_StableAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	s, baseDir := newTestStore(t)
	require.NoError(t, s.Add(ctx, sessionrecord.Record{Session: "abc123"}))

	rec, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	first := s.GetRepoPath(rec)

	// simulate a restart: a new Store instance over the same backend dir
	backend2 := jsonfile.New(filepath.Join(baseDir, "sessions.json"))
	s2 := New(backend2, baseDir)
	rec2, err := s2.Get(ctx, "abc123")
	require.NoError(t, err)
	second := s2.GetRepoPath(rec2)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestGetSessionWorkdir_AbsentReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	dir, err := s.GetSessionWorkdir(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, dir)
}

func TestGetRepoPath_NilRecord(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Equal(t, "", s.GetRepoPath(nil))
}
