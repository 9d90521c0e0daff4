package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Checkbox(t *testing.T) {
	cases := map[Status]string{
		StatusTodo:       "[ ]",
		StatusInProgress: "[-]",
		StatusInReview:   "[+]",
		StatusDone:       "[x]",
		StatusBlocked:    "[!]",
		StatusClosed:     "[~]",
	}
	for status, want := range cases {
		assert.Equal(t, want, status.Checkbox())
	}
}

func TestParseStatus_Invalid(t *testing.T) {
	_, err := ParseStatus("NOT-A-STATUS")
	assert.Error(t, err)
}

func TestParseStatus_Valid(t *testing.T) {
	got, err := ParseStatus("DONE")
	assert.NoError(t, err)
	assert.Equal(t, StatusDone, got)
}
