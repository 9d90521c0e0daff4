package sessionvalidate

import "testing"

func TestSession(t *testing.T) {
	cases := []struct {
		id      string
		wantErr bool
	}{
		{"abc123", false},
		{"", true},
		{"../etc", true},
		{"a/b", true},
		{"a\\b", true},
		{".", true},
		{"..", true},
	}
	for _, c := range cases {
		err := Session(c.id)
		if (err != nil) != c.wantErr {
			t.Errorf("Session(%q) error = %v, wantErr %v", c.id, err, c.wantErr)
		}
	}
}

func TestBackend(t *testing.T) {
	cases := []struct {
		id      string
		wantErr bool
	}{
		{"", false},
		{"sqlite", false},
		{"post.gres-1_2", false},
		{"../etc", true},
		{"a b", true},
	}
	for _, c := range cases {
		err := Backend(c.id)
		if (err != nil) != c.wantErr {
			t.Errorf("Backend(%q) error = %v, wantErr %v", c.id, err, c.wantErr)
		}
	}
}

func TestChangesetRef(t *testing.T) {
	cases := []struct {
		ref     string
		wantErr bool
	}{
		{"feature/foo", false},
		{"main", false},
		{"", true},
		{"a..b", true},
		{"a b", true},
		{"a~1", true},
	}
	for _, c := range cases {
		err := ChangesetRef(c.ref)
		if (err != nil) != c.wantErr {
			t.Errorf("ChangesetRef(%q) error = %v, wantErr %v", c.ref, err, c.wantErr)
		}
	}
}
