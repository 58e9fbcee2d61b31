package cas

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T, chunkedMinSize, chunkSize int64) *Store {
	t.Helper()
	s, err := New(t.TempDir(), chunkedMinSize, chunkSize, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func writeTempFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWriteSmallUnknownHashFilenameEqualsContentHash(t *testing.T) {
	s := newTestStore(t, 16<<20, 4<<20)
	srcDir := t.TempDir()
	src := writeTempFile(t, srcDir, "a.txt", []byte("hello world"))

	meta, err := s.Write(src, "")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Deduped {
		t.Fatal("expected first write to not be a dedup hit")
	}
	if meta.StoragePath != meta.FileHash+".gz" {
		t.Fatalf("expected storage path to be hash + .gz, got %s", meta.StoragePath)
	}
	hash, err := HashFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if meta.FileHash != hash {
		t.Fatalf("expected filename to equal content hash, got %s want %s", meta.FileHash, hash)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), meta.StoragePath)); err != nil {
		t.Fatalf("expected object to exist on disk: %v", err)
	}
}

func TestWriteDedupsIdenticalContent(t *testing.T) {
	s := newTestStore(t, 16<<20, 4<<20)
	srcDir := t.TempDir()
	a := writeTempFile(t, srcDir, "a.txt", []byte("same bytes"))
	b := writeTempFile(t, srcDir, "b.txt", []byte("same bytes"))

	first, err := s.Write(a, "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Write(b, "")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Deduped {
		t.Fatal("expected second write of identical content to be a dedup hit")
	}
	if first.StoragePath != second.StoragePath {
		t.Fatal("expected both writes to map to the same storage object")
	}
}

func TestWriteChunkedAndRestoreRoundTrip(t *testing.T) {
	s := newTestStore(t, 16, 8) // tiny thresholds to force chunking in a test
	srcDir := t.TempDir()
	content := []byte("0123456789abcdefghijklmnopqrstuvwxyz")
	src := writeTempFile(t, srcDir, "big.bin", content)

	meta, err := s.Write(src, "")
	if err != nil {
		t.Fatal(err)
	}
	if !meta.Chunked {
		t.Fatal("expected chunked write for content over the threshold")
	}
	if !strings.HasSuffix(meta.StoragePath, ".manifest.json") {
		t.Fatalf("expected manifest storage path, got %s", meta.StoragePath)
	}

	destDir := t.TempDir()
	dest := filepath.Join(destDir, "restored.bin")
	if err := s.Restore(meta.StoragePath, dest); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("restored content mismatch: got %q want %q", got, content)
	}
}

func TestRestoreGzipRoundTrip(t *testing.T) {
	s := newTestStore(t, 16<<20, 4<<20)
	srcDir := t.TempDir()
	content := []byte("round trip me")
	src := writeTempFile(t, srcDir, "a.txt", content)

	meta, err := s.Write(src, "")
	if err != nil {
		t.Fatal(err)
	}

	destDir := t.TempDir()
	dest := filepath.Join(destDir, "out.txt")
	if err := s.Restore(meta.StoragePath, dest); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("got %q want %q", got, content)
	}
}

func TestGCRespectsGracePeriodAndLiveSet(t *testing.T) {
	s, err := New(t.TempDir(), 16<<20, 4<<20, 0) // zero grace period: everything old enough immediately
	if err != nil {
		t.Fatal(err)
	}
	srcDir := t.TempDir()

	keep := writeTempFile(t, srcDir, "keep.txt", []byte("keep me"))
	drop := writeTempFile(t, srcDir, "drop.txt", []byte("drop me"))

	keepMeta, err := s.Write(keep, "")
	if err != nil {
		t.Fatal(err)
	}
	dropMeta, err := s.Write(drop, "")
	if err != nil {
		t.Fatal(err)
	}

	live := map[string]bool{keepMeta.StoragePath: true}
	removed, err := s.GC(live)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected exactly one object removed, got %d", removed)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), keepMeta.StoragePath)); err != nil {
		t.Fatal("expected live object to survive GC")
	}
	if _, err := os.Stat(filepath.Join(s.Root(), dropMeta.StoragePath)); !os.IsNotExist(err) {
		t.Fatal("expected unreferenced object to be removed")
	}
}
