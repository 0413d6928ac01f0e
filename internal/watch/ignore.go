// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package watch

import (
	"path/filepath"
	"strings"
)

// defaultIgnoreDirs are directory names that never feed the rebuild loop:
// dependency caches and version control metadata.
var defaultIgnoreDirs = []string{"node_modules", ".git", ".cache"}

// IgnoreSet decides which paths the watcher silently drops. The build output
// directory must always be in here, otherwise every rebuild re-triggers the
// watcher and the loop feeds itself.
type IgnoreSet struct {
	dirs  []string // absolute directory prefixes
	globs []string
}

// NewIgnoreSet builds an IgnoreSet from absolute directory prefixes and
// basename/path globs.
func NewIgnoreSet(dirs []string, globs []string) *IgnoreSet {
	set := &IgnoreSet{globs: globs}
	for _, d := range dirs {
		set.dirs = append(set.dirs, filepath.Clean(d))
	}
	return set
}

// Match reports whether path falls under an ignored directory or matches
// an ignore glob. Globs are tried against the full path and the basename,
// in both cases via filepath.Match.
func (s *IgnoreSet) Match(path string) bool {
	clean := filepath.Clean(path)
	for _, dir := range s.dirs {
		if clean == dir || strings.HasPrefix(clean, dir+string(filepath.Separator)) {
			return true
		}
	}
	for _, part := range strings.Split(clean, string(filepath.Separator)) {
		for _, name := range defaultIgnoreDirs {
			if part == name {
				return true
			}
		}
	}
	return matchAny(clean, s.globs)
}

// matchAny checks if a path matches any of the given glob patterns,
// trying the full path first and then just the basename.
func matchAny(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, path); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
