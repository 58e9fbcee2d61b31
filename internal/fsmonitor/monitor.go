// Package fsmonitor watches tracked roots for filesystem changes and feeds
// admitted paths into the backup pipeline. Grounded on
// original_source/backend/app/monitor.py's FileMonitorService
// (_enqueue_command/_monitor_loop/_dispatch_command discipline, confining
// every watch registration/unregistration to one goroutine) and
// LocalEventHandler's on_created/on_deleted/on_modified/on_moved, translated
// from Python's watchdog library to fsnotify's Events/Errors-channel
// select-loop idiom as shown in
// gastrolog/internal/ingester/tail/ingester.go's Run method.
package fsmonitor

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/mod/sumdb/dirhash"

	"locusd/internal/cas"
	"locusd/internal/eventbus"
	"locusd/internal/identity"
	"locusd/internal/pathutil"
	"locusd/internal/store"
)

// fileRenameGrace bounds how long a vanished file's identity waits for a
// content-matching sibling to appear before the pairing attempt is given up
// on and recovery falls back to the path/recovery heuristic in
// identity.GetOrCreate. Same order of magnitude as rootRenameGrace, for the
// same reason: long enough to absorb the OS's two separate rename-related
// events, short enough not to delay a real create's admission noticeably.
const fileRenameGrace = 2 * time.Second

// pendingFileRename buffers a single file's identity across a rename whose
// fsnotify event carries only the old name, keyed by that old path.
type pendingFileRename struct {
	rec      *store.FileRecord
	deadline time.Time
}

// Enqueuer accepts an admitted file path into the backup pipeline.
type Enqueuer interface {
	Submit(path string) error
}

// command is dispatched to the single watcher goroutine; every Watcher.Add/
// Remove call happens inside run, never from a caller's own goroutine,
// mirroring monitor.py's _dispatch_command thread-affinity rule.
type command struct {
	fn   func() error
	done chan error
}

// Monitor owns one fsnotify.Watcher used for recursive per-root watches,
// plus a RootMonitor for detecting a watched root itself being renamed or
// removed out from under the recursive watch.
type Monitor struct {
	store      *store.Store
	identity   *identity.Index
	enqueuer   Enqueuer
	bus        *eventbus.Bus
	exclusions pathutil.Exclusions
	logger     *log.Logger

	watcher  *fsnotify.Watcher
	rootMon  *RootMonitor
	commands chan command

	mu             sync.Mutex
	watchedDirs    map[string]bool // directories currently Add()ed, loop-goroutine owned
	rootsByPath    map[string]*store.WatchedPath
	pendingRenames map[string]*pendingFileRename // old path -> pending file identity, loop-goroutine owned
}

// New creates a Monitor. Call Run to start its single-goroutine event loop.
func New(s *store.Store, ix *identity.Index, enqueuer Enqueuer, bus *eventbus.Bus, exclusions pathutil.Exclusions, logger *log.Logger) (*Monitor, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsmonitor: create watcher: %w", err)
	}
	rootWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("fsmonitor: create root watcher: %w", err)
	}

	m := &Monitor{
		store:          s,
		identity:       ix,
		enqueuer:       enqueuer,
		bus:            bus,
		exclusions:     exclusions,
		logger:         logger,
		watcher:        w,
		commands:       make(chan command),
		watchedDirs:    make(map[string]bool),
		rootsByPath:    make(map[string]*store.WatchedPath),
		pendingRenames: make(map[string]*pendingFileRename),
	}
	m.rootMon = newRootMonitor(rootWatcher, logger)
	return m, nil
}

// AddRoot begins recursively watching wp.Path and its parent directory
// (for root rename/deletion detection), walking the tree to register a
// watch on every existing subdirectory. Safe to call from any goroutine:
// the actual Watcher.Add calls are dispatched onto the loop goroutine.
func (m *Monitor) AddRoot(wp *store.WatchedPath) error {
	return m.dispatch(func() error {
		m.mu.Lock()
		m.rootsByPath[pathutil.Norm(wp.Path)] = wp
		m.mu.Unlock()

		if err := m.addRecursiveLocked(wp.Path); err != nil {
			return err
		}
		if err := m.rootMon.watchRoot(wp); err != nil {
			return err
		}
		hash, err := dirhash.HashDir(wp.Path, wp.Path, dirhash.Hash1)
		if err == nil {
			m.rootMon.trackForRename(wp, hash)
		}
		return nil
	})
}

// RemoveRoot stops watching wp.Path and, if no other active root shares its
// parent directory, stops watching the parent too.
func (m *Monitor) RemoveRoot(wp *store.WatchedPath) error {
	return m.dispatch(func() error {
		m.mu.Lock()
		delete(m.rootsByPath, pathutil.Norm(wp.Path))
		m.mu.Unlock()

		m.removeRecursiveLocked(wp.Path)
		return m.rootMon.unwatchRoot(wp)
	})
}

// dispatch sends fn to the loop goroutine and waits for it to run.
func (m *Monitor) dispatch(fn func() error) error {
	done := make(chan error, 1)
	m.commands <- command{fn: fn, done: done}
	return <-done
}

func (m *Monitor) addRecursiveLocked(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && m.exclusions.IsExcluded(path) {
			return filepath.SkipDir
		}
		return m.addWatchLocked(path)
	})
}

func (m *Monitor) addWatchLocked(dir string) error {
	m.mu.Lock()
	already := m.watchedDirs[dir]
	m.mu.Unlock()
	if already {
		return nil
	}
	if err := m.watcher.Add(dir); err != nil {
		if m.logger != nil {
			m.logger.Printf("fsmonitor: failed to watch %s: %v", dir, err)
		}
		return nil
	}
	m.mu.Lock()
	m.watchedDirs[dir] = true
	m.mu.Unlock()
	return nil
}

func (m *Monitor) removeRecursiveLocked(root string) {
	boundary := root + string(filepath.Separator)
	m.mu.Lock()
	var toRemove []string
	for dir := range m.watchedDirs {
		if dir == root || len(dir) > len(boundary) && dir[:len(boundary)] == boundary {
			toRemove = append(toRemove, dir)
		}
	}
	m.mu.Unlock()

	for _, dir := range toRemove {
		m.watcher.Remove(dir)
		m.mu.Lock()
		delete(m.watchedDirs, dir)
		m.mu.Unlock()
	}
}

// Run drives the watcher loop until ctx is cancelled. It owns every
// Watcher.Add/Remove call for both the recursive and root watchers.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.watcher.Close()
	defer m.rootMon.watcher.Close()

	expireTicker := time.NewTicker(rootRenameGrace / 2)
	defer expireTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-expireTicker.C:
			for _, res := range m.rootMon.ExpirePending() {
				m.handleRootResolution(res)
			}
			m.expireFileRenames()

		case cmd := <-m.commands:
			cmd.done <- cmd.fn()

		case ev, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			m.handleFileEvent(ev)

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			if m.logger != nil {
				m.logger.Printf("fsmonitor: watcher error: %v", err)
			}

		case ev, ok := <-m.rootMon.watcher.Events:
			if !ok {
				return nil
			}
			if resolved := m.rootMon.handleEvent(ev); resolved != nil {
				m.handleRootResolution(resolved)
			}

		case err, ok := <-m.rootMon.watcher.Errors:
			if !ok {
				return nil
			}
			if m.logger != nil {
				m.logger.Printf("fsmonitor: root watcher error: %v", err)
			}
		}
	}
}

func (m *Monitor) handleFileEvent(ev fsnotify.Event) {
	path := ev.Name

	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		m.logEvent("created", path, "")
		if info.IsDir() {
			if m.exclusions.IsExcluded(path) {
				return
			}
			if err := m.addRecursiveLocked(path); err != nil && m.logger != nil {
				m.logger.Printf("fsmonitor: failed to extend watch into %s: %v", path, err)
			}
			m.submitTreeLocked(path)
			return
		}
		m.tryPairRename(path)
		m.submit(path)

	case ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return
		}
		m.logEvent("modified", path, "")
		m.submit(path)

	case ev.Has(fsnotify.Remove):
		m.logEvent("deleted", path, "")

	case ev.Has(fsnotify.Rename):
		// fsnotify does not correlate a rename's old and new paths (unlike
		// Python's watchdog, which pairs them by inotify cookie): we only
		// learn that `path` no longer exists under its old name. If an
		// identity is tracked for it, buffer it for fileRenameGrace so the
		// next Create can pair it by content hash (tryPairRename) — the
		// same technique rootmonitor.go uses for root-level renames, applied
		// to individual files so a same-directory basename change (a.txt ->
		// b.txt) still keeps its version history, which the path+basename
		// recovery heuristic in identity.GetOrCreate cannot do on its own.
		// If nothing pairs within the window, the eventual Create falls back
		// to that same recovery heuristic, the path a file moved while the
		// watcher was offline already takes.
		m.logEvent("renamed_from", path, "")
		if rec, err := m.identity.Lookup(path); err == nil {
			m.mu.Lock()
			m.pendingRenames[path] = &pendingFileRename{rec: rec, deadline: time.Now().Add(fileRenameGrace)}
			m.mu.Unlock()
		}

	case ev.Has(fsnotify.Chmod):
		// Permission-only changes carry no content implications.
	}
}

func (m *Monitor) submit(path string) {
	if err := m.enqueuer.Submit(path); err != nil && m.logger != nil {
		m.logger.Printf("fsmonitor: submit %s: %v", path, err)
	}
}

// tryPairRename checks newPath (a just-created file) against every file
// identity still buffered from a recent renamed_from event, matching by
// content hash rather than basename so a same-directory rename that changes
// the name (a.txt -> b.txt) still reattaches to its prior history. On a
// match it repoints the identity immediately via identity.Rename, so the
// backup queue's own GetOrCreate(newPath, hash) finds an exact record at
// newPath instead of falling through to the basename-constrained recovery
// heuristic.
func (m *Monitor) tryPairRename(newPath string) {
	m.mu.Lock()
	hasPending := len(m.pendingRenames) > 0
	m.mu.Unlock()
	if !hasPending {
		return
	}

	hash, err := cas.HashFile(newPath)
	if err != nil {
		return
	}

	now := time.Now()
	m.mu.Lock()
	var oldPath string
	var rec *store.FileRecord
	for p, pr := range m.pendingRenames {
		if now.After(pr.deadline) {
			continue
		}
		if pr.rec.ContentHash.Valid && pr.rec.ContentHash.String == hash {
			oldPath, rec = p, pr.rec
			break
		}
	}
	if rec != nil {
		delete(m.pendingRenames, oldPath)
	}
	m.mu.Unlock()
	if rec == nil {
		return
	}

	if err := m.identity.Rename(rec, newPath, hash); err != nil {
		if m.logger != nil {
			m.logger.Printf("fsmonitor: pair rename %s -> %s failed: %v", oldPath, newPath, err)
		}
		return
	}
	m.logEvent("moved", oldPath, newPath)
	if m.logger != nil {
		m.logger.Printf("fsmonitor: paired rename %s -> %s by content hash", oldPath, newPath)
	}
}

// expireFileRenames drops any buffered file rename whose grace window has
// elapsed with no matching Create, letting a later Create for that path (or
// a different path entirely) fall through to identity.GetOrCreate's own
// recovery heuristic instead of pairing against a stale entry.
func (m *Monitor) expireFileRenames() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for p, pr := range m.pendingRenames {
		if now.After(pr.deadline) {
			delete(m.pendingRenames, p)
		}
	}
}

func (m *Monitor) submitTreeLocked(root string) {
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if m.exclusions.IsExcluded(path) {
			return nil
		}
		m.submit(path)
		return nil
	})
}

func (m *Monitor) logEvent(eventType, srcPath, destPath string) {
	if _, err := m.store.CreateFileEvent(eventType, srcPath, destPath); err != nil && m.logger != nil {
		m.logger.Printf("fsmonitor: log event failed: %v", err)
	}
	if m.bus != nil {
		m.bus.Publish(eventbus.Event{Kind: eventbus.KindFileEvent, Payload: srcPath})
	}
}

// handleRootResolution applies a resolved root rename or deletion: rewrite
// identities and historical events under the old prefix, or deactivate the
// watched path if it was genuinely removed.
func (m *Monitor) handleRootResolution(res *rootResolution) {
	if res.renamedTo != "" {
		n, err := m.identity.RenameDirectory(res.oldPath, res.renamedTo)
		if err != nil && m.logger != nil {
			m.logger.Printf("fsmonitor: root rename identity rewrite failed: %v", err)
		}
		swap := func(current string) (string, bool) {
			return pathutil.PrefixSwap(current, res.oldPath, res.renamedTo)
		}
		if _, err := m.store.UpdateDirectoryEvents(swap); err != nil && m.logger != nil {
			m.logger.Printf("fsmonitor: root rename event rewrite failed: %v", err)
		}
		if err := m.store.UpdatePathTo(res.watchedPathID, res.renamedTo); err != nil && m.logger != nil {
			m.logger.Printf("fsmonitor: root rename path update failed: %v", err)
		}
		if m.logger != nil {
			m.logger.Printf("fsmonitor: root %s renamed to %s (%d identities rewritten)", res.oldPath, res.renamedTo, n)
		}

		m.removeRecursiveLocked(res.oldPath)
		if err := m.addRecursiveLocked(res.renamedTo); err != nil && m.logger != nil {
			m.logger.Printf("fsmonitor: failed to re-establish watch on renamed root %s: %v", res.renamedTo, err)
		}
		m.mu.Lock()
		delete(m.rootsByPath, pathutil.Norm(res.oldPath))
		m.rootsByPath[pathutil.Norm(res.renamedTo)] = res.watchedPath
		m.mu.Unlock()
		return
	}

	// No auto-heal on a genuine deletion: deactivate and wait for the user
	// to relink or remove the root explicitly.
	if err := m.store.DeactivateWatchedPath(res.watchedPathID); err != nil && m.logger != nil {
		m.logger.Printf("fsmonitor: failed to deactivate removed root: %v", err)
	}
	m.removeRecursiveLocked(res.oldPath)
	if err := m.store.LogActivity("root_deleted", res.oldPath, "watched root removed from disk"); err != nil && m.logger != nil {
		m.logger.Printf("fsmonitor: failed to log root deletion: %v", err)
	}
	if m.logger != nil {
		m.logger.Printf("fsmonitor: root %s deleted, deactivated (no auto-heal)", res.oldPath)
	}
}
