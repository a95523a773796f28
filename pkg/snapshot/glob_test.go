// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package snapshot

import "testing"

func TestMatchesGlobSimple(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"*.txt", "foo.txt", true},
		{"*.txt", "foo.bin", false},
		{"*.txt", "sub/foo.txt", false},
		{"**/*.txt", "sub/foo.txt", true},
		{"**/*.txt", "a/b/c/foo.txt", true},
		{"**", "a/b/c/foo.txt", true},
		{"data/*", "data/file.db", true},
		{"data/*", "other/file.db", false},
	}
	for _, c := range cases {
		if got := matchesGlob(c.pattern, c.path); got != c.want {
			t.Errorf("matchesGlob(%q, %q) = %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}
