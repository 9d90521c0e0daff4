package task

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Forms(t *testing.T) {
	want := ID("#23")
	for _, in := range []string{"23", "#23", "#023", " 23 ", "#0000023"} {
		got, err := Normalize(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}
}

func TestNormalize_BackendQualifier(t *testing.T) {
	got, err := Normalize("md#001")
	require.NoError(t, err)
	assert.Equal(t, ID("md#1"), got)

	backend, ok := got.Backend()
	assert.True(t, ok)
	assert.Equal(t, "md", backend)
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, in := range []string{"23", "#23", "md#007"} {
		first, err := Normalize(in)
		require.NoError(t, err)
		second, err := Normalize(first.String())
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestNormalize_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "#", "md#", "12abc"} {
		_, err := Normalize(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("1", "#001"))
	assert.True(t, Equal("md#1", "md#0001"))
	assert.False(t, Equal("md#1", "gh#1"))
	assert.False(t, Equal("1", "2"))
	assert.False(t, Equal("1", "not-a-task"))
}

func TestID_JSONRoundTrip(t *testing.T) {
	type wrapper struct {
		TaskID ID `json:"taskId,omitempty"`
	}

	w := wrapper{TaskID: MustNormalize("#023")}
	data, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"taskId":"#23"}`, string(data))

	var out wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"taskId":"#0007"}`), &out))
	assert.Equal(t, ID("#7"), out.TaskID)
}

func TestID_JSONRoundTrip_Empty(t *testing.T) {
	var out struct {
		TaskID ID `json:"taskId"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"taskId":""}`), &out))
	assert.Equal(t, ID(""), out.TaskID)
}
