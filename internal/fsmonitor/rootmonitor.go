package fsmonitor

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/mod/sumdb/dirhash"

	"locusd/internal/store"
)

// rootRenameGrace bounds how long a missing root waits for a matching
// sibling to appear in its parent directory before being treated as a
// genuine deletion. Mirrors restoresuppress.Window's order of magnitude:
// long enough to absorb a filesystem rename's two separate inotify events,
// short enough not to delay a real deletion's detection noticeably.
const rootRenameGrace = 2 * time.Second

// rootResolution is what handleEvent hands back to Monitor once a pending
// rename either resolves to a sibling or times out into a deletion.
type rootResolution struct {
	watchedPathID int64
	watchedPath   *store.WatchedPath
	oldPath       string
	renamedTo     string // empty means: treat as deleted
}

type pendingRoot struct {
	wp       *store.WatchedPath
	dirHash  string
	deadline time.Time
}

// RootMonitor watches each active root's *parent* directory, non-
// recursively, to notice the root itself being renamed or removed out from
// under the recursive file watch. Grounded on monitor.py's
// RootEventHandler, which watches the parent for exactly this reason.
//
// fsnotify, unlike Python's watchdog, does not correlate a rename's old and
// new name by inotify cookie, so a renamed root surfaces as a Rename on the
// old name with no destination. This is resolved here by content: when the
// old name disappears, its last-known directory hash is remembered for
// rootRenameGrace; if a new directory appears in the same parent within
// that window with a matching hash, it is treated as the same root having
// moved. Otherwise the root is considered genuinely gone, matching
// monitor.py's no-auto-heal policy for handle_root_deletion.
type RootMonitor struct {
	watcher *fsnotify.Watcher
	logger  *log.Logger

	mu      sync.Mutex
	parents map[string]int          // parent dir -> number of active roots sharing it
	pending map[string]*pendingRoot // root path -> pending rename/deletion
}

func newRootMonitor(w *fsnotify.Watcher, logger *log.Logger) *RootMonitor {
	return &RootMonitor{
		watcher: w,
		logger:  logger,
		parents: make(map[string]int),
		pending: make(map[string]*pendingRoot),
	}
}

func (rm *RootMonitor) watchRoot(wp *store.WatchedPath) error {
	parent := filepath.Dir(wp.Path)

	rm.mu.Lock()
	count := rm.parents[parent]
	rm.parents[parent] = count + 1
	rm.mu.Unlock()

	if count == 0 {
		if err := rm.watcher.Add(parent); err != nil {
			if rm.logger != nil {
				rm.logger.Printf("fsmonitor: failed to watch parent %s: %v", parent, err)
			}
		}
	}
	return nil
}

func (rm *RootMonitor) unwatchRoot(wp *store.WatchedPath) error {
	parent := filepath.Dir(wp.Path)

	rm.mu.Lock()
	count := rm.parents[parent] - 1
	if count <= 0 {
		delete(rm.parents, parent)
	} else {
		rm.parents[parent] = count
	}
	delete(rm.pending, wp.Path)
	rm.mu.Unlock()

	if count <= 0 {
		rm.watcher.Remove(parent)
	}
	return nil
}

// handleEvent processes one event on a parent watch. It returns a non-nil
// resolution when a pending rename/deletion is finalized (either matched to
// a sibling or expired into a deletion); most calls return nil because they
// only record state.
func (rm *RootMonitor) handleEvent(ev fsnotify.Event) *rootResolution {
	parent := filepath.Dir(ev.Name)

	switch {
	case ev.Has(fsnotify.Rename), ev.Has(fsnotify.Remove):
		return rm.markMissing(parent, ev.Name)
	case ev.Has(fsnotify.Create):
		return rm.tryResolveSibling(parent, ev.Name)
	}
	return nil
}

func (rm *RootMonitor) markMissing(parent, path string) *rootResolution {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	pr, ok := rm.pending[path]
	if !ok || filepath.Dir(pr.wp.Path) != parent {
		return nil
	}
	pr.deadline = time.Now().Add(rootRenameGrace)
	return nil
}

// tryResolveSibling checks newPath (a Create in parent) against every root
// still pending in that same parent directory — keyed by root path rather
// than by parent, since two active roots can share a parent and each needs
// its own independent pending entry.
func (rm *RootMonitor) tryResolveSibling(parent, newPath string) *rootResolution {
	rm.mu.Lock()
	var candidates []*pendingRoot
	for rootPath, pr := range rm.pending {
		if filepath.Dir(rootPath) == parent {
			candidates = append(candidates, pr)
		}
	}
	rm.mu.Unlock()
	if len(candidates) == 0 {
		return nil
	}

	newHash, err := dirhash.HashDir(newPath, newPath, dirhash.Hash1)
	if err != nil {
		return nil
	}

	for _, pr := range candidates {
		if newHash != pr.dirHash {
			continue
		}
		rm.mu.Lock()
		delete(rm.pending, pr.wp.Path)
		rm.mu.Unlock()

		return &rootResolution{
			watchedPathID: pr.wp.ID,
			watchedPath:   pr.wp,
			oldPath:       pr.wp.Path,
			renamedTo:     newPath,
		}
	}
	return nil
}

// ExpirePending finalizes any pending root whose grace window has elapsed
// into a deletion resolution. Monitor.Run polls this periodically on its
// expireTicker.
func (rm *RootMonitor) ExpirePending() []*rootResolution {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	var resolved []*rootResolution
	now := time.Now()
	for rootPath, pr := range rm.pending {
		if pr.deadline.IsZero() || now.Before(pr.deadline) {
			continue
		}
		resolved = append(resolved, &rootResolution{
			watchedPathID: pr.wp.ID,
			watchedPath:   pr.wp,
			oldPath:       pr.wp.Path,
		})
		delete(rm.pending, rootPath)
	}
	return resolved
}

// trackForRename primes pending-rename tracking for a root, recording its
// last-known dirhash so a later sibling match can be confirmed by content.
// Called by Monitor.AddRoot right after watchRoot. Keyed by the root's own path
// so two roots sharing a parent directory don't clobber each other's entry.
func (rm *RootMonitor) trackForRename(wp *store.WatchedPath, dirHash string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.pending[wp.Path] = &pendingRoot{wp: wp, dirHash: dirHash}
}
