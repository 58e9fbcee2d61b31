package identity

import (
	"testing"

	"locusd/internal/store"
)

func TestGetOrCreateMintsNewIdentity(t *testing.T) {
	s := store.OpenMemory(t)
	ix := New(s)

	rec, recovered, err := ix.GetOrCreate("/r/a.txt", "hash-a")
	if err != nil {
		t.Fatal(err)
	}
	if recovered {
		t.Fatal("expected a fresh identity, not a recovery")
	}
	if rec.CurrentPath != "/r/a.txt" {
		t.Fatalf("unexpected path %s", rec.CurrentPath)
	}
}

func TestGetOrCreateRecoversRenamedIdentityByHashAndBasename(t *testing.T) {
	s := store.OpenMemory(t)
	ix := New(s)

	original, _, err := ix.GetOrCreate("/r/old/report.txt", "hash-report")
	if err != nil {
		t.Fatal(err)
	}

	// The file moved to a new directory under the same basename and with
	// the same content; the old path no longer exists on disk, so recovery
	// should attach the new path to the existing identity.
	recovered, wasRecovered, err := ix.GetOrCreate("/r/new/report.txt", "hash-report")
	if err != nil {
		t.Fatal(err)
	}
	if !wasRecovered {
		t.Fatal("expected identity recovery")
	}
	if recovered.ID != original.ID {
		t.Fatal("expected the recovered record to share the original's identity")
	}
	if recovered.CurrentPath != "/r/new/report.txt" {
		t.Fatalf("unexpected path %s", recovered.CurrentPath)
	}
}

func TestRenameDirectoryIsBoundarySafe(t *testing.T) {
	s := store.OpenMemory(t)
	ix := New(s)

	if _, _, err := ix.GetOrCreate("/A/Test/file.txt", "h1"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ix.GetOrCreate("/A/Testing/other.txt", "h2"); err != nil {
		t.Fatal(err)
	}

	n, err := ix.RenameDirectory("/A/Test", "/A/Renamed")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one record rewritten, got %d", n)
	}

	untouched, err := ix.Lookup("/A/Testing/other.txt")
	if err != nil {
		t.Fatal(err)
	}
	if untouched.CurrentPath != "/A/Testing/other.txt" {
		t.Fatal("expected the sibling directory to be left alone")
	}

	moved, err := ix.Lookup("/A/Renamed/file.txt")
	if err != nil {
		t.Fatal(err)
	}
	if moved.CurrentPath != "/A/Renamed/file.txt" {
		t.Fatal("expected the renamed directory's file to follow")
	}
}
