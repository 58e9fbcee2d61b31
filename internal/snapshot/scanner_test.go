package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"locusd/internal/eventbus"
	"locusd/internal/pathutil"
	"locusd/internal/store"
)

type fakeEnqueuer struct {
	submitted []string
}

func (f *fakeEnqueuer) Submit(path string) error {
	f.submitted = append(f.submitted, path)
	return nil
}

func TestRunMirrorsAndEnqueuesAdmittedFiles(t *testing.T) {
	s := store.OpenMemory(t)
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("world"), 0o644); err != nil {
		t.Fatal(err)
	}

	wp, err := s.CreateWatchedPath("myroot", root)
	if err != nil {
		t.Fatal(err)
	}

	mirrorRoot := t.TempDir()
	enq := &fakeEnqueuer{}
	sc := New(s, enq, eventbus.New(8), pathutil.Exclusions{}, true, false, nil)

	if err := sc.Run(wp, mirrorRoot); err != nil {
		t.Fatal(err)
	}

	if len(enq.submitted) != 2 {
		t.Fatalf("expected 2 admitted files enqueued, got %d: %v", len(enq.submitted), enq.submitted)
	}

	subdir := StorageSubdir(root)
	mirroredA := filepath.Join(mirrorRoot, subdir, "a.txt")
	if _, err := os.Stat(mirroredA); err != nil {
		t.Fatalf("expected mirrored file at %s: %v", mirroredA, err)
	}
	if _, err := os.Stat(filepath.Join(mirrorRoot, subdir, ".git", "HEAD")); !os.IsNotExist(err) {
		t.Fatal("expected excluded .git directory to not be mirrored")
	}
}

func TestRunSkipsReactivatedRootWithUnchangedDirhash(t *testing.T) {
	s := store.OpenMemory(t)
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	wp, err := s.CreateWatchedPath("myroot", root)
	if err != nil {
		t.Fatal(err)
	}

	mirrorRoot := t.TempDir()
	enq := &fakeEnqueuer{}
	sc := New(s, enq, eventbus.New(8), pathutil.Exclusions{}, true, false, nil)
	if err := sc.Run(wp, mirrorRoot); err != nil {
		t.Fatal(err)
	}
	firstCount := len(enq.submitted)

	refreshed, err := s.GetWatchedPathByID(wp.ID)
	if err != nil {
		t.Fatal(err)
	}

	second := &fakeEnqueuer{}
	sc2 := New(s, second, eventbus.New(8), pathutil.Exclusions{}, true, false, nil)
	if err := sc2.Run(refreshed, mirrorRoot); err != nil {
		t.Fatal(err)
	}
	if len(second.submitted) != 0 {
		t.Fatalf("expected reactivation fast path to skip the walk, got %d submissions", len(second.submitted))
	}
	if firstCount != 1 {
		t.Fatalf("expected 1 file on first scan, got %d", firstCount)
	}
}
