package pathutil

import (
	"path/filepath"
	"testing"
)

func TestPrefixSwapBoundarySafe(t *testing.T) {
	root := string(filepath.Separator) + "A"
	testDir := filepath.Join(root, "Test")
	testingDir := filepath.Join(root, "Testing", "g.txt")
	newDir := filepath.Join(root, "NewName")

	rewritten, ok := PrefixSwap(filepath.Join(testDir, "f.txt"), testDir, newDir)
	if !ok || rewritten != filepath.Join(newDir, "f.txt") {
		t.Fatalf("expected rewrite, got %q ok=%v", rewritten, ok)
	}

	untouched, ok := PrefixSwap(testingDir, testDir, newDir)
	if ok || untouched != testingDir {
		t.Fatalf("Testing/ must not be touched by a Test -> NewName rename, got %q ok=%v", untouched, ok)
	}
}

func TestPrefixSwapExactMatch(t *testing.T) {
	rewritten, ok := PrefixSwap("/A/Test", "/A/Test", "/A/New")
	if !ok || rewritten != "/A/New" {
		t.Fatalf("exact match should rewrite to the bare new prefix, got %q ok=%v", rewritten, ok)
	}
}

func TestWithin(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "root")
	inside := filepath.Join(root, "sub", "file.txt")
	outside := filepath.Join(tmp, "other", "file.txt")

	if !Within(inside, []string{root}) {
		t.Fatalf("expected %q to be within %q", inside, root)
	}
	if Within(outside, []string{root}) {
		t.Fatalf("expected %q to be outside %q", outside, root)
	}
}

func TestExclusionsSegmentExact(t *testing.T) {
	e := Exclusions{}
	if !e.IsExcluded(filepath.Join("repo", ".git", "HEAD")) {
		t.Fatal("expected .git segment to be excluded")
	}
	if e.IsExcluded(filepath.Join("repo", "distant", "file.go")) {
		t.Fatal("segment match must be exact, not a substring of 'distant'")
	}
}

func TestExclusionsCustomGlob(t *testing.T) {
	e := Exclusions{CustomGlobs: []string{"**/*.bak"}}
	if !e.IsExcluded("/root/project/file.bak") {
		t.Fatal("expected glob-excluded .bak file")
	}
	if e.IsExcluded("/root/project/file.go") {
		t.Fatal("did not expect .go file to match **/*.bak")
	}
}
