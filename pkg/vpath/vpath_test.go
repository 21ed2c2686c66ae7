package vpath

import "testing"

func TestValidate(t *testing.T) {
	cases := []struct {
		path    string
		wantErr bool
	}{
		{"a", false},
		{"a/b/c", false},
		{"", true},
		{"/a", true},
		{"a/", true},
		{"a//b", true},
		{"a/../b", true},
	}
	for _, c := range cases {
		err := Validate(c.path)
		if (err != nil) != c.wantErr {
			t.Errorf("Validate(%q): got err=%v, want wantErr=%v", c.path, err, c.wantErr)
		}
	}
}

func TestParentAndBasename(t *testing.T) {
	if got := Parent("a/b/c"); got != "a/b" {
		t.Errorf("Parent: got %q, want a/b", got)
	}
	if got := Parent("a"); got != "" {
		t.Errorf("Parent of single segment: got %q, want \"\"", got)
	}
	if got := Basename("a/b/c"); got != "c" {
		t.Errorf("Basename: got %q, want c", got)
	}
	if got := Basename("a"); got != "a" {
		t.Errorf("Basename of single segment: got %q, want a", got)
	}
}

func TestAncestors(t *testing.T) {
	got := Ancestors("a/b/c")
	want := []string{"a", "a/b"}
	if len(got) != len(want) {
		t.Fatalf("Ancestors: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Ancestors[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
	if got := Ancestors("a"); got != nil {
		t.Errorf("Ancestors of single segment: got %v, want nil", got)
	}
}

func TestJoin(t *testing.T) {
	if got := Join("a/b", "c"); got != "a/b/c" {
		t.Errorf("Join: got %q", got)
	}
	if got := Join("", "c"); got != "c" {
		t.Errorf("Join with empty parent: got %q", got)
	}
}

func TestIsImmediateChild(t *testing.T) {
	if !IsImmediateChild("a", "a/b") {
		t.Error("a/b should be an immediate child of a")
	}
	if IsImmediateChild("a", "a/b/c") {
		t.Error("a/b/c should not be an immediate child of a")
	}
	if !IsImmediateChild("", "a") {
		t.Error("a should be an immediate child of the root")
	}
}

func TestIsProperDescendant(t *testing.T) {
	if !IsProperDescendant("a", "a/b/c") {
		t.Error("a/b/c should be a proper descendant of a")
	}
	if IsProperDescendant("a", "ab") {
		t.Error("ab should not be a proper descendant of a")
	}
	if !IsProperDescendant("", "a") {
		t.Error("a should be a proper descendant of the root")
	}
	if IsProperDescendant("", "") {
		t.Error("root should not be a proper descendant of itself")
	}
}
