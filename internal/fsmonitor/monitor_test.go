package fsmonitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"locusd/internal/cas"
	"locusd/internal/eventbus"
	"locusd/internal/identity"
	"locusd/internal/pathutil"
	"locusd/internal/store"
)

type noopEnqueuer struct{}

func (noopEnqueuer) Submit(path string) error { return nil }

func newTestMonitor(t *testing.T) (*Monitor, *store.Store, *identity.Index) {
	t.Helper()
	s := store.OpenMemory(t)
	ix := identity.New(s)
	m, err := New(s, ix, noopEnqueuer{}, eventbus.New(8), pathutil.Exclusions{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, s, ix
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

// TestFileRenamePairingPreservesIdentity exercises §8 scenario 3: renaming
// a.txt -> b.txt in the same watched directory must keep the file's
// identity (and so its version history) rather than minting a new record,
// even though the two names don't match — TryRecoverFileRecord's basename
// requirement alone can't bridge that gap.
func TestFileRenamePairingPreservesIdentity(t *testing.T) {
	m, s, ix := newTestMonitor(t)
	root := t.TempDir()

	aPath := filepath.Join(root, "a.txt")
	if err := os.WriteFile(aPath, []byte("same content"), 0o644); err != nil {
		t.Fatalf("write a.txt: %v", err)
	}

	rec, _, err := ix.GetOrCreate(aPath, "")
	if err != nil {
		t.Fatalf("seed identity: %v", err)
	}
	hash, err := cas.HashFile(aPath)
	if err != nil {
		t.Fatalf("hash a.txt: %v", err)
	}
	if err := s.UpdateFileRecordPath(rec.ID, aPath, hash); err != nil {
		t.Fatalf("seed content hash: %v", err)
	}

	wp, err := s.CreateWatchedPath("root", root)
	if err != nil {
		t.Fatalf("CreateWatchedPath: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	if err := m.AddRoot(wp); err != nil {
		t.Fatalf("AddRoot: %v", err)
	}

	bPath := filepath.Join(root, "b.txt")
	if err := os.Rename(aPath, bPath); err != nil {
		t.Fatalf("rename: %v", err)
	}

	waitUntil(t, 2*time.Second, func() bool {
		got, err := ix.Lookup(bPath)
		return err == nil && got.ID == rec.ID
	})

	if _, err := ix.Lookup(aPath); err == nil {
		t.Fatal("expected old path to no longer resolve to an identity")
	}
}
