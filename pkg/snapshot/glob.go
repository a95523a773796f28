// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package snapshot

import (
	"path"
	"path/filepath"
	"strings"
)

// matchesGlob reports whether relPath (slash-separated, relative to a
// Snapshotter's source or destination root) matches pattern. Patterns use
// the same segment syntax as filepath.Match, plus a "**" segment matching
// zero or more path segments, mirroring pathlib.Path.glob's recursive
// wildcard in the source this package is modeled on.
func matchesGlob(pattern, relPath string) bool {
	patternSegs := strings.Split(path.Clean(filepath.ToSlash(pattern)), "/")
	pathSegs := strings.Split(path.Clean(filepath.ToSlash(relPath)), "/")
	return matchSegments(patternSegs, pathSegs)
}

func matchSegments(pattern, name []string) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}
	if pattern[0] == "**" {
		if matchSegments(pattern[1:], name) {
			return true
		}
		if len(name) == 0 {
			return false
		}
		return matchSegments(pattern, name[1:])
	}
	if len(name) == 0 {
		return false
	}
	ok, err := filepath.Match(pattern[0], name[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], name[1:])
}
