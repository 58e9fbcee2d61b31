package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// BuiltinExclusions is the built-in set of directory segment names never
// tracked, regardless of configuration.
var BuiltinExclusions = []string{
	".git", "node_modules", "__pycache__", "venv", ".venv",
	"dist", "build", "target", ".idea", ".vscode", ".cache",
	".DS_Store", "Thumbs.db", "desktop.ini",
}

// Exclusions evaluates whether a path should be skipped by the watcher,
// scanner, or backup queue. Segment matching is exact (a directory named
// "distant" is never excluded by a "dist" entry); the additive glob layer
// is the only place substring-style matching happens, and it is always
// opt-in via CustomGlobs.
type Exclusions struct {
	// CustomSegments are user-maintained exact segment names, unioned with
	// BuiltinExclusions.
	CustomSegments []string

	// CustomGlobs are doublestar patterns checked against the whole
	// normalised path. This is a SPEC_FULL.md supplement on top of §4.2's
	// segment-exact invariant, never a replacement for it: a path that
	// fails the segment check is excluded regardless of the glob set, and
	// a path that passes the segment check may still be excluded by a
	// glob match.
	CustomGlobs []string
}

// IsExcluded reports whether path should be skipped.
func (e Exclusions) IsExcluded(path string) bool {
	segments := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		for _, excl := range BuiltinExclusions {
			if seg == excl {
				return true
			}
		}
		for _, excl := range e.CustomSegments {
			if seg == excl {
				return true
			}
		}
	}

	if len(e.CustomGlobs) == 0 {
		return false
	}
	slashPath := filepath.ToSlash(path)
	for _, pattern := range e.CustomGlobs {
		if ok, _ := doublestar.Match(pattern, slashPath); ok {
			return true
		}
	}
	return false
}
