// Package task defines the task identifier and status vocabulary shared
// between the session registry, the approval/merge engine, and the (out of
// scope) task-body markdown backend.
package task

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ID is the canonical form "#" + decimal digits, with an optional backend
// qualifier "<backend>#<n>" (e.g. "md#123"). Leading zeros are not
// significant: "23", "#23", and "#023" all normalize to the same ID when
// the backend allows leading-zero collapse (see Normalize).
//
//nolint:recvcheck // UnmarshalJSON needs a pointer receiver; other methods use value receivers.
type ID string

// idPattern accepts an optional "<backend>#" qualifier followed by an
// optional leading "#" and one or more digits.
var idPattern = regexp.MustCompile(`^(?:([A-Za-z][A-Za-z0-9_-]*)#)?#?(\d+)$`)

// Normalize parses any accepted textual form of a task ID — "1", "#1",
// "md#001", " 1 ", "#0000001" — into its canonical ID. It trims whitespace,
// strips a leading "#", collapses leading zeros, and re-prefixes with "#".
// A backend qualifier, if present, is preserved verbatim before the "#".
func Normalize(s string) (ID, error) {
	trimmed := strings.TrimSpace(s)
	m := idPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return "", fmt.Errorf("invalid task ID %q: expected optional backend qualifier and decimal digits", s)
	}

	backend, digits := m[1], m[2]
	n, err := strconv.Atoi(digits)
	if err != nil {
		return "", fmt.Errorf("invalid task ID %q: %w", s, err)
	}

	canonical := "#" + strconv.Itoa(n)
	if backend != "" {
		canonical = backend + canonical
	}
	return ID(canonical), nil
}

// MustNormalize is Normalize but panics on error. Use only with literals
// known to be valid (e.g. in tests).
func MustNormalize(s string) ID {
	id, err := Normalize(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical textual form of the ID.
func (id ID) String() string { return string(id) }

// Backend returns the backend qualifier, if any ("md" for "md#123"), and
// whether one was present.
func (id ID) Backend() (string, bool) {
	s := string(id)
	if i := strings.IndexByte(s, '#'); i > 0 {
		return s[:i], true
	}
	return "", false
}

// Equal reports whether two task ID strings (in any accepted input form)
// refer to the same logical task, per Normalize's collapsing rules.
func Equal(a, b string) bool {
	na, errA := Normalize(a)
	nb, errB := Normalize(b)
	if errA != nil || errB != nil {
		return false
	}
	return na == nb
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(string(id))
	if err != nil {
		return nil, fmt.Errorf("marshal task ID: %w", err)
	}
	return data, nil
}

// UnmarshalJSON implements json.Unmarshaler, normalizing on the way in so
// every ID held in memory is already canonical.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal task ID: %w", err)
	}
	if s == "" {
		*id = ""
		return nil
	}
	n, err := Normalize(s)
	if err != nil {
		return err
	}
	*id = n
	return nil
}
