package versioncheck

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsOutdated(t *testing.T) {
	cases := []struct {
		current, latest string
		want             bool
	}{
		{"1.0.0", "1.0.1", true},
		{"1.0.0", "1.1.0", true},
		{"1.0.0", "2.0.0", true},
		{"1.0.1", "1.0.0", false},
		{"2.0.0", "1.9.9", false},
		{"1.0.0", "1.0.0", false},
		{"v1.0.0", "v1.0.1", true},
		{"v1.0.0", "1.0.1", true},
		{"1.0.0", "v1.0.1", true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, isOutdated(tc.current, tc.latest), "isOutdated(%q, %q)", tc.current, tc.latest)
	}
}

func TestParseRelease_SkipsPrereleases(t *testing.T) {
	_, err := parseRelease([]byte(`{"tag_name":"v2.0.0","prerelease":true}`))
	require.Error(t, err)
}

func TestParseRelease_RejectsEmptyTag(t *testing.T) {
	_, err := parseRelease([]byte(`{"tag_name":"","prerelease":false}`))
	require.Error(t, err)
}

func TestParseRelease_ReturnsTagName(t *testing.T) {
	tag, err := parseRelease([]byte(`{"tag_name":"v2.1.0","prerelease":false}`))
	require.NoError(t, err)
	require.Equal(t, "v2.1.0", tag)
}

func TestCache_SaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, ensureConfigDir())

	want := &Cache{LastCheckTime: time.Now().Round(time.Second)}
	require.NoError(t, saveCache(want))

	got, err := loadCache()
	require.NoError(t, err)
	require.True(t, want.LastCheckTime.Equal(got.LastCheckTime))
}
