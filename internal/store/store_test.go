package store

import (
	"database/sql"
	"testing"
)

func TestWatchedPathRoundTrip(t *testing.T) {
	s := OpenMemory(t)

	wp, err := s.CreateWatchedPath("docs", "/home/user/docs")
	if err != nil {
		t.Fatal(err)
	}
	if !wp.IsActive {
		t.Fatal("expected new watched path to be active")
	}

	got, err := s.GetWatchedPathByPath("/home/user/docs")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != wp.ID {
		t.Fatalf("expected %d, got %d", wp.ID, got.ID)
	}

	if err := s.DeactivateWatchedPath(wp.ID); err != nil {
		t.Fatal(err)
	}
	active, err := s.GetWatchedPaths(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active roots after deactivation, got %d", len(active))
	}
}

func TestFileVersionMonotonicNumbering(t *testing.T) {
	s := OpenMemory(t)

	rec, err := s.CreateFileRecord("/r/a.txt", "hash1")
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 3; i++ {
		n, err := s.NextVersionNumber(rec.ID)
		if err != nil {
			t.Fatal(err)
		}
		if n != i {
			t.Fatalf("expected version %d, got %d", i, n)
		}
		_, err = s.CreateFileVersion(&FileVersion{
			FileRecordID:  sql.NullInt64{Int64: rec.ID, Valid: true},
			OriginalPath:  "/r/a.txt",
			StoragePath:   "ab/cdef",
			VersionNumber: n,
			FileHash:      "hash1",
			FileSizeBytes: 10,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	versions, err := s.ListVersionsByRecord(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(versions))
	}
	for i, v := range versions {
		if v.VersionNumber != i+1 {
			t.Fatalf("expected versions in ascending order, got %d at index %d", v.VersionNumber, i)
		}
	}
}

func TestDirectoryRecordRenameIsBoundarySafe(t *testing.T) {
	s := OpenMemory(t)

	if _, err := s.CreateFileRecord("/A/Test/file.txt", "h1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateFileRecord("/A/Testing/other.txt", "h2"); err != nil {
		t.Fatal(err)
	}

	swap := func(current string) (string, bool) {
		const oldPrefix, newPrefix = "/A/Test", "/A/Renamed"
		boundary := oldPrefix + "/"
		if current == oldPrefix {
			return newPrefix, true
		}
		if len(current) > len(boundary) && current[:len(boundary)] == boundary {
			return newPrefix + "/" + current[len(boundary):], true
		}
		return current, false
	}

	n, err := s.UpdateDirectoryRecords("/A/Test", "/A/Renamed", swap)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one rewrite, got %d", n)
	}

	untouched, err := s.GetFileRecord("/A/Testing/other.txt")
	if err != nil {
		t.Fatal(err)
	}
	if untouched.CurrentPath != "/A/Testing/other.txt" {
		t.Fatal("expected the sibling directory's record to be left alone")
	}
}

func TestBackupTaskClaimAtMostOneInFlight(t *testing.T) {
	s := OpenMemory(t)

	if _, err := s.EnqueueBackupTask("/r/a.txt"); err != nil {
		t.Fatal(err)
	}
	pending, err := s.HasPendingBackupTask("/r/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !pending {
		t.Fatal("expected a pending task")
	}

	task, err := s.ClaimNextBackupTask()
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != TaskStatusProcessing {
		t.Fatalf("expected processing, got %s", task.Status)
	}

	if _, err := s.ClaimNextBackupTask(); err == nil {
		t.Fatal("expected no further claimable tasks")
	}

	if err := s.MarkBackupTaskDone(task.ID); err != nil {
		t.Fatal(err)
	}
}
