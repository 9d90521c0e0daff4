package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionforge/sessionctl/internal/sessionrecord"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "sessions.json"))
}

func TestInitialize_CreatesEmptyState(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	created, err := b.Initialize(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	state, err := b.ReadState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.Sessions)

	created, err = b.Initialize(ctx)
	require.NoError(t, err)
	assert.False(t, created, "second Initialize should be a no-op")
}

func TestCreateGetDelete(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	rec := sessionrecord.Record{Session: "s1", RepoName: "org/repo"}
	require.NoError(t, b.Create(ctx, rec))

	got, err := b.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "org/repo", got.RepoName)

	// Invariant 4: add then get returns an equal record; add then delete
	// then get returns absent.
	ok, err := b.Delete(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = b.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreate_DuplicateConflict(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	rec := sessionrecord.Record{Session: "dup"}
	require.NoError(t, b.Create(ctx, rec))
	err := b.Create(ctx, rec)
	assert.Error(t, err)
}

func TestUpdate_NeverChangesSession(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	require.NoError(t, b.Create(ctx, sessionrecord.Record{Session: "s1", RepoName: "a"}))

	newName := "b"
	got, err := b.Update(ctx, "s1", sessionrecord.Patch{RepoName: &newName})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "s1", got.Session)
	assert.Equal(t, "b", got.RepoName)
}

func TestUpdate_AbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	newName := "b"
	got, err := b.Update(ctx, "missing", sessionrecord.Patch{RepoName: &newName})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadState_AcceptsLegacyArrayForm(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"session":"s1","repoName":"x"}]`), 0o600))

	b := New(path)
	state, err := b.ReadState(ctx)
	require.NoError(t, err)
	require.Len(t, state.Sessions, 1)
	assert.Equal(t, "s1", state.Sessions[0].Session)
}

func TestReadState_LegacyEmptyArray(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o600))

	b := New(path)
	state, err := b.ReadState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.Sessions)
}

func TestReadState_CorruptTreatedAsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))

	b := New(path)
	state, err := b.ReadState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.Sessions)
}

func TestReadState_MissingFileIsEmpty(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	state, err := b.ReadState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.Sessions)
}

func TestWriteThenReadState_SameProcess(t *testing.T) {
	// Invariant 6: writeState followed by readState in the same process
	// observes the write.
	ctx := context.Background()
	b := newTestBackend(t)

	state := sessionrecord.DBState{
		Sessions: []sessionrecord.Record{{Session: "a"}, {Session: "b"}},
		BaseDir:  "/base",
	}
	_, err := b.WriteState(ctx, state)
	require.NoError(t, err)

	got, err := b.ReadState(ctx)
	require.NoError(t, err)
	require.Len(t, got.Sessions, 2)
	names := map[string]bool{}
	for _, r := range got.Sessions {
		names[r.Session] = true
	}
	assert.True(t, names["a"])
	assert.True(t, names["b"])
	assert.Equal(t, "/base", got.BaseDir)
}

func TestGetAll_Filter(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	require.NoError(t, b.Create(ctx, sessionrecord.Record{Session: "s1", RepoName: "r1", Branch: "main"}))
	require.NoError(t, b.Create(ctx, sessionrecord.Record{Session: "s2", RepoName: "r2", Branch: "main"}))

	repo := "r1"
	got, err := b.GetAll(ctx, sessionrecord.Filter{RepoName: &repo})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].Session)
}
