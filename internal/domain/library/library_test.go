package library

import "testing"

func TestLookup(t *testing.T) {
	lib := &BookLibrary{Dir: "books", Books: []Entry{
		{File: "alice.epub"},
		{File: "Moby Dick.txt"},
	}}

	tests := []struct {
		ref  string
		want string
		ok   bool
	}{
		{"1", "alice.epub", true},
		{"2", "Moby Dick.txt", true},
		{"3", "", false},
		{"ALICE.EPUB", "alice.epub", true},
		{"moby dick", "Moby Dick.txt", true},
		{"missing", "", false},
	}
	for _, tt := range tests {
		got, ok := lib.Lookup(tt.ref)
		if ok != tt.ok || got.File != tt.want {
			t.Errorf("Lookup(%q) = %q, %v; want %q, %v", tt.ref, got.File, ok, tt.want, tt.ok)
		}
	}
}
