// Package pathutil implements the normalisation, prefix-rewrite and
// containment checks every other package in locusd relies on for path
// equality. Every comparison in identity tracking, directory-rename
// rewriting, and restore-destination validation goes through here so the
// boundary rules live in exactly one place.
package pathutil

import (
	"path/filepath"
	"strings"
)

// Norm returns the absolute, case-folded form of path used as the key for
// every equality check in locusd. Two paths that refer to the same file on
// a case-insensitive filesystem normalise to the same string.
func Norm(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	abs = filepath.Clean(abs)
	return strings.ToLower(abs)
}

// PrefixSwap rewrites current's oldPrefix to newPrefix, but only when the
// match falls on a path-segment boundary. "/Test" must never match
// "/Testing/...": the old prefix is compared with a trailing separator
// appended (unless it already has one), so a partial segment can never be
// mistaken for a full one.
//
// Returns the rewritten path and whether current actually matched.
func PrefixSwap(current, oldPrefix, newPrefix string) (string, bool) {
	boundary := oldPrefix
	if !strings.HasSuffix(boundary, string(filepath.Separator)) {
		boundary += string(filepath.Separator)
	}

	if current == oldPrefix {
		return newPrefix, true
	}
	if !strings.HasPrefix(current, boundary) {
		return current, false
	}

	suffix := current[len(boundary):]
	return filepath.Join(newPrefix, suffix), true
}

// Within reports whether target lies inside one of roots, using Norm for
// comparison so case and absoluteness differences don't cause a false
// negative. It is the gate applied to every restore destination.
func Within(target string, roots []string) bool {
	normTarget := Norm(target)
	for _, root := range roots {
		normRoot := Norm(root)
		if normTarget == normRoot {
			return true
		}
		common, err := commonPath(normTarget, normRoot)
		if err == nil && common == normRoot {
			return true
		}
	}
	return false
}

// commonPath returns the longest common path prefix of a and b on segment
// boundaries (compared segment by segment, not as a raw string prefix).
func commonPath(a, b string) (string, error) {
	aParts := strings.Split(filepath.Clean(a), string(filepath.Separator))
	bParts := strings.Split(filepath.Clean(b), string(filepath.Separator))

	n := len(aParts)
	if len(bParts) < n {
		n = len(bParts)
	}

	var common []string
	for i := 0; i < n; i++ {
		if aParts[i] != bParts[i] {
			break
		}
		common = append(common, aParts[i])
	}

	if len(common) == 0 {
		return "", nil
	}
	joined := strings.Join(common, string(filepath.Separator))
	if joined == "" {
		joined = string(filepath.Separator)
	}
	return joined, nil
}
