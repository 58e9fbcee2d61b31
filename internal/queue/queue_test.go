package queue

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
	"locusd/internal/restoresuppress"
	"locusd/internal/store"
	"locusd/internal/version"
)

func newTestQueue(t *testing.T) (*Queue, *store.Store) {
	t.Helper()
	s := store.OpenMemory(t)
	ix := identity.New(s)
	vx := version.New(s)
	cs, err := cas.New(t.TempDir(), 16<<20, 4<<20, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	q := New(s, ix, vx, cs, restoresuppress.New(), pathutil.Exclusions{}, 0, eventbus.New(8), nil)
	return q, s
}

func TestAdmitRejectsTempSuffix(t *testing.T) {
	q, _ := newTestQueue(t)
	if _, ok := q.admit("/r/file.txt.tmp"); ok {
		t.Fatal("expected temp suffix to be rejected")
	}
}

func TestAdmitRejectsExcludedPath(t *testing.T) {
	q, _ := newTestQueue(t)
	if _, ok := q.admit("/r/.git/HEAD"); ok {
		t.Fatal("expected excluded path to be rejected")
	}
}

func TestAdmitRejectsDuringRestoreSuppression(t *testing.T) {
	q, _ := newTestQueue(t)
	q.suppress.RegisterRestoreStart("/r/a.txt")
	if _, ok := q.admit("/r/a.txt"); ok {
		t.Fatal("expected suppressed path to be rejected")
	}
}

func TestSubmitThenProcessWritesVersion(t *testing.T) {
	q, s := newTestQueue(t)
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "a.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := q.Submit(src); err != nil {
		t.Fatal(err)
	}
	pending, err := s.HasPendingBackupTask(src)
	if err != nil {
		t.Fatal(err)
	}
	if !pending {
		t.Fatal("expected a pending task after submit")
	}

	if !q.processOne() {
		t.Fatal("expected processOne to find the submitted task")
	}

	rec, err := q.identity.Lookup(src)
	if err != nil {
		t.Fatal(err)
	}
	versions, err := q.version.List(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected exactly one version, got %d", len(versions))
	}
}

func TestRunProcessesTasksUntilCancelled(t *testing.T) {
	q, _ := newTestQueue(t)
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "a.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := q.Submit(src); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	q.Run(ctx)

	rec, err := q.identity.Lookup(src)
	if err != nil {
		t.Fatal(err)
	}
	versions, err := q.version.List(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected the worker loop to have processed the task, got %d versions", len(versions))
	}
}
