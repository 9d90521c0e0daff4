package repouri

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_S3Scenarios(t *testing.T) {
	cases := []struct {
		name       string
		in         string
		wantType   Type
		normalized string
	}{
		{"https", "https://github.com/org/repo.git", TypeHTTPS, "org/repo"},
		{"ssh", "git@github.com:org/repo.git", TypeSSH, "org/repo"},
		{"file", "file:///tmp/project", TypeFile, "local/project"},
		{"local path", "/tmp/project", TypeLocalPath, "local/project"},
		{"shorthand", "org/repo", TypeHostedShorthand, "org/repo"},
		{"malformed scheme url", "https://invalid]url", TypeLocalPath, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.in)
			assert.Equal(t, tc.wantType, got.Type, "type for %q", tc.in)
			if tc.name != "malformed scheme url" {
				assert.Equal(t, tc.normalized, got.Normalized, "normalized for %q", tc.in)
			}
		})
	}
}

func TestParse_NoSchemeInsufficientSegments(t *testing.T) {
	// A scheme URL with fewer than two path segments falls through to LOCAL_PATH.
	got := Parse("https://github.com/onlyowner")
	assert.Equal(t, TypeLocalPath, got.Type)
}

func TestParse_StripsDotGit(t *testing.T) {
	got := Parse("https://gitlab.com/group/proj.git")
	assert.Equal(t, "group/proj", got.Normalized)
	assert.Equal(t, "proj", got.Repo)
}

func TestParse_Total(t *testing.T) {
	// Parse never panics and always returns something for arbitrary garbage input.
	inputs := []string{"", "   ", "::::", "a/b/c/d", "@@@"}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Parse(in) })
	}
}

func TestInvariant_NormalizedStable(t *testing.T) {
	// Property 1: parse(uri).normalized == parse(normalized(uri)).normalized
	// for every recognized hosted form.
	for _, in := range []string{
		"https://github.com/org/repo.git",
		"git@github.com:org/repo.git",
		"org/repo",
	} {
		first := Parse(in)
		second := Parse(first.Normalized)
		assert.Equal(t, first.Normalized, second.Normalized, "input %q", in)
	}
}

func TestInvariant_ExpandShorthandLeftInverse(t *testing.T) {
	// Property 2: expandShorthand is a left-inverse of the shorthand
	// projection for hosted URIs.
	hosted := Parse("https://github.com/org/repo.git")
	expanded := ExpandShorthand(hosted.Normalized, "https", "github.com")
	require.NotEmpty(t, expanded)
	back := Parse(expanded)
	assert.Equal(t, hosted.Normalized, back.Normalized)
}

func TestExpandShorthand_Malformed(t *testing.T) {
	assert.Empty(t, ExpandShorthand("no-slash-here", "https", "github.com"))
	assert.Empty(t, ExpandShorthand("", "https", "github.com"))
}

func TestValidate_LocalPathExists(t *testing.T) {
	dir := t.TempDir()
	u := Parse(dir)
	res := Validate(u)
	assert.True(t, res.Valid)
}

func TestValidate_LocalPathMissing(t *testing.T) {
	u := Parse(filepath.Join(t.TempDir(), "does-not-exist"))
	res := Validate(u)
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Error)
}

func TestValidate_RemoteMissingOwnerRepo(t *testing.T) {
	u := URI{Type: TypeHTTPS, Normalized: "broken"}
	res := Validate(u)
	assert.False(t, res.Valid)
}

func TestConvert(t *testing.T) {
	u := Parse("org/repo")
	https, ok := Convert(u, TypeHTTPS, "github.com")
	require.True(t, ok)
	assert.Equal(t, "https://github.com/org/repo.git", https)

	ssh, ok := Convert(u, TypeSSH, "github.com")
	require.True(t, ok)
	assert.Equal(t, "git@github.com:org/repo.git", ssh)

	_, ok = Convert(u, TypeLocalPath, "")
	assert.False(t, ok)
}

func TestConvert_IncompatibleMissingOwnerRepo(t *testing.T) {
	u := Parse(os.TempDir())
	_, ok := Convert(u, TypeHTTPS, "github.com")
	assert.False(t, ok)
}

func TestIsLocal(t *testing.T) {
	assert.True(t, Parse("/tmp/x").IsLocal())
	assert.True(t, Parse("file:///tmp/x").IsLocal())
	assert.False(t, Parse("org/repo").IsLocal())
}
