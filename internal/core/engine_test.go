package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"locusd/internal/cas"
	"locusd/internal/eventbus"
	"locusd/internal/identity"
	"locusd/internal/locuserr"
	"locusd/internal/pathutil"
	"locusd/internal/queue"
	"locusd/internal/restoresuppress"
	"locusd/internal/store"
	"locusd/internal/version"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	st := store.OpenMemory(t)
	casStore, err := cas.New(t.TempDir(), 16<<20, 4<<20, time.Hour)
	if err != nil {
		t.Fatalf("cas.New: %v", err)
	}
	ix := identity.New(st)
	vx := version.New(st)
	bus := eventbus.New(8)
	suppress := restoresuppress.New()
	q := queue.New(st, ix, vx, casStore, suppress, pathutil.Exclusions{}, time.Millisecond, bus, nil)

	return &Engine{
		Store:    st,
		Identity: ix,
		Version:  vx,
		CAS:      casStore,
		Queue:    q,
		Bus:      bus,
		Suppress: suppress,
	}
}

// runQueueOnce writes content to path, submits it, and runs the queue's
// worker loop just long enough to drain every pending task.
func runQueueOnce(t *testing.T, e *Engine, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := e.Queue.Submit(path); err != nil {
		t.Fatalf("submit %s: %v", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		e.Queue.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := e.Store.CountPendingBackupTasks()
		if err != nil {
			t.Fatalf("CountPendingBackupTasks: %v", err)
		}
		if n == 0 {
			cancel()
			<-done
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
	t.Fatalf("queue never drained for %s", path)
}

func TestEngineAddWatchedRootAndRestore(t *testing.T) {
	e := newTestEngine(t)
	root := t.TempDir()

	wp, err := e.AddWatchedRoot(root)
	if err != nil {
		t.Fatalf("AddWatchedRoot: %v", err)
	}

	filePath := filepath.Join(root, "a.txt")
	runQueueOnce(t, e, filePath, "v1")
	runQueueOnce(t, e, filePath, "v2")

	versions, err := e.ListVersions(filePath)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if versions[0].VersionNumber != 2 || versions[1].VersionNumber != 1 {
		t.Fatalf("expected version numbers [2,1], got [%d,%d]", versions[0].VersionNumber, versions[1].VersionNumber)
	}

	dest := filepath.Join(root, "restored.txt")
	res, err := e.Restore(versions[1].ID, dest)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("read restored file: %v", err)
	}
	if string(data) != "v1" {
		t.Fatalf("expected restored content v1, got %q", data)
	}

	if !pathutil.Within(dest, []string{wp.Path}) {
		t.Fatalf("expected restore destination within watched root")
	}
}

func TestEngineRestoreForbiddenOutsideRoots(t *testing.T) {
	e := newTestEngine(t)
	root := t.TempDir()
	if _, err := e.AddWatchedRoot(root); err != nil {
		t.Fatalf("AddWatchedRoot: %v", err)
	}

	filePath := filepath.Join(root, "a.txt")
	runQueueOnce(t, e, filePath, "hello")

	versions, err := e.ListVersions(filePath)
	if err != nil || len(versions) == 0 {
		t.Fatalf("ListVersions: %v (n=%d)", err, len(versions))
	}

	outside := filepath.Join(t.TempDir(), "escape.txt")
	_, err = e.Restore(versions[0].ID, outside)
	if err == nil {
		t.Fatalf("expected Forbidden restoring outside watched roots")
	}
	if locuserr.ClassifyKind(err) != locuserr.KindForbidden {
		t.Fatalf("expected KindForbidden, got %v", locuserr.ClassifyKind(err))
	}
}

func TestEngineDedupSkipsUnchangedContent(t *testing.T) {
	e := newTestEngine(t)
	root := t.TempDir()
	if _, err := e.AddWatchedRoot(root); err != nil {
		t.Fatalf("AddWatchedRoot: %v", err)
	}

	filePath := filepath.Join(root, "a.txt")
	runQueueOnce(t, e, filePath, "same")
	runQueueOnce(t, e, filePath, "same")

	versions, err := e.ListVersions(filePath)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected content-identical resubmission to add no version, got %d versions", len(versions))
	}
}

func TestEngineRunGC(t *testing.T) {
	e := newTestEngine(t)
	root := t.TempDir()
	if _, err := e.AddWatchedRoot(root); err != nil {
		t.Fatalf("AddWatchedRoot: %v", err)
	}

	filePath := filepath.Join(root, "a.txt")
	runQueueOnce(t, e, filePath, "v1")

	if _, err := e.RunGC(); err != nil {
		t.Fatalf("RunGC: %v", err)
	}

	versions, err := e.ListVersions(filePath)
	if err != nil || len(versions) != 1 {
		t.Fatalf("expected live version to survive GC, got %d versions, err=%v", len(versions), err)
	}
	if _, err := e.VersionContent(versions[0].ID); err != nil {
		t.Fatalf("VersionContent after GC: %v", err)
	}
}
